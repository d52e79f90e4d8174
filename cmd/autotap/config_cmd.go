package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func runConfigCommand(args []string) error {
	subCmd := "show"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "check":
		return runConfigCheck()
	case "show":
		return runConfigShow()
	case "path":
		return runConfigPath()
	default:
		return withExitCode(fmt.Errorf("unknown config command: %s (use check, show, or path)", subCmd), exitCodeUsage)
	}
}

func configPaths() (string, string) {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".autotap", "config.yaml"), filepath.Join(".autotap", "config.yaml")
}

func runConfigPath() error {
	userConfig, projectConfig := configPaths()
	fmt.Println(userConfig)
	fmt.Println(projectConfig)
	return nil
}

func runConfigShow() error {
	cfg, err := loadConfigFn("")
	if err != nil {
		return err
	}
	if cfg.Server.Token != "" {
		cfg.Server.Token = "********"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runConfigCheck() error {
	fmt.Println("Checking autotap configuration...")
	fmt.Println()

	userConfig, projectConfig := configPaths()
	fmt.Println("Configuration files:")
	for _, f := range []struct{ label, path string }{
		{"User config:   ", userConfig},
		{"Project config:", projectConfig},
	} {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Printf("  ✓ %s %s\n", f.label, f.path)
		} else {
			fmt.Printf("  - %s %s (not found)\n", f.label, f.path)
		}
	}
	fmt.Println()

	cfg, err := loadConfigFn("")
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return err
	}
	fmt.Println("  ✓ configuration is valid")
	fmt.Printf("    driver: %s  headless: %v  points: %d  mode: %s\n",
		cfg.Browser.Driver, cfg.Browser.Headless, len(cfg.Clicks.Points), cfg.Clicks.Mode)
	if cfg.URL == "" {
		fmt.Println("  - no url configured; pass --url to autotap run")
	}
	return nil
}
