package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		if stdinIsTTY() {
			return runConsole(nil)
		}
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "console":
		return runConsole(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "start":
		return runStart(args[1:])
	case "pause":
		return runPause(args[1:])
	case "resume":
		return runResume(args[1:])
	case "stop":
		return runStop(args[1:])
	case "export":
		return runExport(args[1:])
	case "config":
		return runConfig(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("scraper-console: operator console for the places extraction backend")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  scraper-console                 (interactive console on a terminal)")
	fmt.Println("  scraper-console start --category minería --region Lima --count 50")
	fmt.Println("  scraper-console watch")
	fmt.Println("  scraper-console export --out exports")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  console   interactive control panel with live telemetry")
	fmt.Println("  watch     plain-text live dashboard (--json for event lines)")
	fmt.Println("  start     start an extraction job")
	fmt.Println("  pause     pause the running job")
	fmt.Println("  resume    continue a paused job")
	fmt.Println("  stop      stop the job")
	fmt.Println("  export    download the results workbook")
	fmt.Println("  config    print the resolved configuration")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Every command accepts --config <file.toml> (default: $SCRAPER_CONFIG or ./scraper-console.toml)")
	fmt.Println("  - Endpoints come from SCRAPER_API_URL / SCRAPER_WS_URL or a .env file")
	fmt.Println("  - Use --json on commands for machine-readable output")
}
