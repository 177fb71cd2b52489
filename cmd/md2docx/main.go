package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("md2docx"),
		kong.Description("Convert Markdown documents to Word .docx files."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := &Global{Ctx: sigCtx, Logger: cli.logger(), Out: os.Stdout}
	err := ctx.Run(g, &cli)
	ctx.FatalIfErrorf(err)
}
