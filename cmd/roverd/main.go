// Package main runs the rover control core on real hardware until
// signalled to stop.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/maishede/little-eighteen/components/board/periphboard"
	"github.com/maishede/little-eighteen/config"
	"github.com/maishede/little-eighteen/rover"
)

var logger = golog.NewDevelopmentLogger("roverd")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=robot config file (defaults to the shipped chassis wiring)"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		var err error
		cfg, err = config.FromFile(argsParsed.ConfigFile)
		if err != nil {
			return err
		}
	}

	b, err := periphboard.NewBoard()
	if err != nil {
		return err
	}

	r, err := rover.New(ctx, b, cfg, logger)
	if err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}
	defer func() {
		if err := r.Close(context.Background()); err != nil {
			logger.Errorw("error closing rover", "error", err)
		}
		if err := b.Close(context.Background()); err != nil {
			logger.Errorw("error closing board", "error", err)
		}
	}()

	utils.ContextMainReadyFunc(ctx)()
	<-ctx.Done()
	return nil
}
