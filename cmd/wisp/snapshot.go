package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	pkgerrors "github.com/pkg/errors"
)

func (a *app) snapshot(args []string) int {
	if a.store == nil {
		log.Print("Error: no snapshot store configured (set store.driver and store.dsn)")
		return 2
	}
	if len(args) == 0 {
		showUsage()
		return 2
	}
	ctx := context.Background()

	switch args[0] {
	case "save":
		if len(args) < 3 {
			log.Print("Usage: wisp snapshot save <name> <file>")
			return 2
		}
		machine := a.newVM()
		if _, err := machine.DoFile(args[2]); err != nil {
			return 1
		}
		n, err := a.store.Save(ctx, args[1], machine)
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		fmt.Printf("saved %d globals as %s\n", n, args[1])
		return 0

	case "load":
		if len(args) < 2 {
			log.Print("Usage: wisp snapshot load <name> [file]")
			return 2
		}
		machine := a.newVM()
		if _, err := a.store.Load(ctx, args[1], machine); err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		if len(args) < 3 {
			return a.runREPL(machine)
		}
		if _, err := machine.DoFile(args[2]); err != nil {
			return 1
		}
		return 0

	case "list":
		snapshots, err := a.store.List(ctx)
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSAVED\tSIZE")
		for _, s := range snapshots {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, humanize.Time(s.SavedAt), humanize.Bytes(uint64(s.Size)))
		}
		w.Flush()
		return 0

	case "delete":
		if len(args) < 2 {
			log.Print("Usage: wisp snapshot delete <name>")
			return 2
		}
		if err := a.store.Delete(ctx, args[1]); err != nil {
			log.Printf("Error: %v", pkgerrors.Cause(err))
			return 1
		}
		return 0
	}

	log.Printf("Unknown snapshot command: %s", args[0])
	return 2
}
