// trackinspect shows the fused aircraft of a radarfusion server together
// with their raw fixes and lets the operator switch feeds on and off.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unklstewy/radarfusion/internal/api"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "radarfusion server URL")
	interval := flag.Duration("interval", time.Second, "Refresh interval")
	user := flag.String("user", "", "Operator login; the password is read from RADARFUSION_PASSWORD")
	token := flag.String("token", os.Getenv("RADARFUSION_TOKEN"), "Operator token")
	flag.Usage = printHelp
	flag.Parse()

	client := api.NewClient(*server)
	client.SetToken(*token)
	if *user != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.Login(ctx, *user, os.Getenv("RADARFUSION_PASSWORD"))
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
	}

	app := NewApp(client, *interval)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("trackinspect - inspect fused tracks of a radarfusion server")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  trackinspect [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("KEYS:")
	fmt.Println("  ↑/↓        Select aircraft or source")
	fmt.Println("  TAB        Switch between aircraft and sources")
	fmt.Println("  d / e      Disable / enable the selected source")
	fmt.Println("  r          Refresh now")
	fmt.Println("  q          Quit")
}
