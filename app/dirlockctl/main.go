package main

import (
	"github.com/dirlock/dirlock/app/dirlockctl/cmd"
	"github.com/dirlock/dirlock/app/panichandler"
	"github.com/dirlock/dirlock/app/paniclogger"
)

func main() {
	_ = paniclogger.Init()
	defer func() {
		_ = paniclogger.Close()
	}()
	defer panichandler.Recover("dirlockctl")

	cmd.Execute()
}
