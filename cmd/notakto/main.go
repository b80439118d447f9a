package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Play     PlayCmd          `cmd:"" default:"1" help:"Play against the computer"`
	SignIn   SignInCmd        `cmd:"sign-in" help:"Check credentials and show the account profile"`
	BuyCoins BuyCoinsCmd      `cmd:"buy-coins" help:"Buy a coin pack"`
	Token    TokenCmd         `cmd:"" help:"Mint a development token from the configured secret"`
}

// Globals are flags shared by every command; they override the config file.
type Globals struct {
	Config   string `short:"c" default:"notakto.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Backend base URL (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("notakto"),
		kong.Description("Play misère tic-tac-toe across several boards against the computer"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
