package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "iptvd"
	app.Usage = "crontab-backed network interface power scheduler"
	app.Version = version
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the scheduler daemon and its JSON API",
			Flags:  []cli.Flag{configFlag},
			Action: serve,
		},
		{
			Name:   "on",
			Usage:  "bring the managed interface up",
			Flags:  []cli.Flag{configFlag},
			Action: powerOn,
		},
		{
			Name:   "off",
			Usage:  "take the managed interface down",
			Flags:  []cli.Flag{configFlag},
			Action: powerOff,
		},
		{
			Name:   "status",
			Usage:  "show the interface state",
			Flags:  []cli.Flag{configFlag},
			Action: powerStatus,
		},
		{
			Name:   "checkoff",
			Usage:  "take the interface down unless a manual override window is open (run from cron)",
			Flags:  []cli.Flag{configFlag},
			Action: checkoff,
		},
		{
			Name:   "schedules",
			Usage:  "list the crontab power schedules",
			Flags:  []cli.Flag{configFlag},
			Action: listSchedules,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "iptvd:", err)
		os.Exit(1)
	}
}

var configFlag = cli.StringFlag{
	Name:   "config, c",
	Value:  "/etc/iptvd/config.yaml",
	Usage:  "path to the config file (YAML or JSON)",
	EnvVar: "IPTVD_CONFIG",
}
