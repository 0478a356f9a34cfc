package main

import (
	"ecourts-backend/cmd/casestatus-cli/commands"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	_, err := telemetry.SetupFromEnv(ctx, "casestatus-cli")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
