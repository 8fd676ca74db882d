package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"

	"lapelle-backend/lib/browserpool"
	"lapelle-backend/lib/chrono"
	"lapelle-backend/lib/configutil"
	configsqlite "lapelle-backend/lib/configutil/sqlite"
	"lapelle-backend/lib/keychain"
	"lapelle-backend/lib/restyutil"
	"lapelle-backend/lib/serviceutil"
	"lapelle-backend/lib/telemetry"
	"lapelle-backend/services/directory"
	directorydb "lapelle-backend/services/directory/db"
	"lapelle-backend/services/portal"
	"lapelle-backend/services/schedule"
)

type PrefetchConfig struct {
	Spec   string   `json:"spec"`
	Groups []string `json:"groups"`
}

type Config struct {
	Database    configsqlite.Config `json:"database"`
	Secret      string              `json:"secret"`
	Port        int                 `json:"port"`
	AccessToken string              `json:"access_token"`
	Prefetch    PrefetchConfig      `json:"prefetch"`
}

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	telemetry.InitSlog(*verbose)
	if *verbose {
		output, err := restyutil.NewFilesystemOutput(".dev/resty/portal")
		if err != nil {
			serviceutil.Fatal("failed to set up http transcripts", err)
		}
		portal.SetRestyInstrumentOutput(output)
	}
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Secret == "" {
		serviceutil.Fatal("refusing to start", errors.New("no credential signing secret configured"))
	}
	if config.Port == 0 {
		config.Port = 8555
	}

	db, err := config.Database.OpenDB(directorydb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	tel, err := telemetry.SetupFromEnv(ctx, "lapelled")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	pool := browserpool.New(browserpool.Options{})
	dir := directory.NewService(db, keychain.NewCodec([]byte(config.Secret)))
	svc := schedule.NewService(dir, dir, schedule.NewPortalScraper(pool))

	cronner := chrono.NewStandardCron()
	defer cronner.Stop()
	if err := setupPrefetch(ctx, cronner, svc, config.Prefetch); err != nil {
		serviceutil.Fatal("failed to schedule prefetch", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/api/", http.StripPrefix("/api", serviceutil.VerifyAccessToken(
		config.AccessToken,
		newAPI(svc, dir),
	)))
	go serviceutil.StartHttpServer(ctx, config.Port, mux)

	<-ctx.Done()
	if err := pool.Close(false); err != nil {
		serviceutil.Fatal("failed to drain browser pool", err)
	}
}
