package main

import (
	"matextract-backend/cmd/matextract/commands"
	"matextract-backend/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
