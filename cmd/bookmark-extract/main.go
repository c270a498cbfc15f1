package main

import (
	"log/slog"
	"os"

	"bookmark-extract/cmd/bookmark-extract/commands"
	"bookmark-extract/lib/serviceutil"
	"bookmark-extract/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	serviceutil.InitSlog(os.Getenv("DEBUG") != "")
	t, err := telemetry.SetupFromEnv(ctx, "bookmark-extract")
	if err != nil {
		// missing telemetry.json5 just means spans go nowhere
		if !os.IsNotExist(err) {
			slog.Warn("telemetry disabled", "err", err)
		}
	} else {
		defer t.Shutdown(ctx)
		telemetry.InstrumentPerfStats(ctx)
	}

	commands.ExecuteContext(ctx)
}
