package launcher

import (
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-aura-asset/flags"
)

// set with -ldflags "-X github.com/rony4d/go-aura-asset/cmd/aura/launcher.gitCommit=..."
var gitCommit = ""

func newApp() *cli.App {
	app := flags.NewApp(gitCommit, "Aura slot schedule and block timing toolkit")
	app.Flags = flags.Merge(flags.CommonFlags(), flags.AuraFlags())
	app.Commands = []cli.Command{
		scheduleCommand,
		checkCommand,
		replayCommand,
		fakeKeysCommand,
	}
	return app
}

// Launch runs the aura CLI with the given arguments (program name first).
func Launch(args []string) error {
	return newApp().Run(args)
}
