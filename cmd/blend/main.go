// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Command blend is a thin demonstration entry point over pkg/blend/repo
// and pkg/blend/transport/http. It exposes the repository operations by
// semantic subcommand name only; an interactive CLI argument grammar is
// spec.md §1's explicitly excluded external collaborator, so this binary
// is not itself a spec target.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/blendvc/blendvc/modules/plumbing"
	"github.com/blendvc/blendvc/pkg/blend/config"
	"github.com/blendvc/blendvc/pkg/blend/repo"
	blendhttp "github.com/blendvc/blendvc/pkg/blend/transport/http"
)

func parseHash(s string) (plumbing.Hash, error) {
	return plumbing.NewHashEx(s)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: blend <init|commit|restore|branch|switch|log|serve|sync> ...")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadOptions() (repo.Options, error) {
	const configPath = "blend.toml"
	if !config.Exists(configPath) {
		return repo.Options{Dir: "."}, nil
	}
	f, err := config.Load(configPath)
	if err != nil {
		return repo.Options{}, err
	}
	return f.Options(), nil
}

func run(cmd string, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	switch cmd {
	case "init":
		if len(args) != 2 {
			return fmt.Errorf("usage: blend init <project-id> <file>")
		}
		r, err := repo.Init(opts, args[0], args[1])
		if err != nil {
			return err
		}
		defer r.Close()
		fmt.Println("initialised", opts.Dir)
		return nil

	case "commit":
		if len(args) != 2 {
			return fmt.Errorf("usage: blend commit <file> <message>")
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		commit, err := r.Commit(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(commit.Hash.String())
		return nil

	case "restore":
		if len(args) != 2 {
			return fmt.Errorf("usage: blend restore <hash> <file>")
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		hash, err := parseHash(args[0])
		if err != nil {
			return err
		}
		if _, err := r.Restore(args[1], hash); err != nil {
			return err
		}
		fmt.Println("restored", args[1])
		return nil

	case "branch":
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		if len(args) == 1 {
			return r.NewBranch(args[0])
		}
		names, err := r.ListBranches()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil

	case "switch":
		if len(args) != 2 {
			return fmt.Errorf("usage: blend switch <branch> <file>")
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		if _, err := r.Switch(args[1], args[0]); err != nil {
			return err
		}
		fmt.Println("switched to", args[0])
		return nil

	case "log":
		branch := "main"
		if len(args) == 1 {
			branch = args[0]
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		checkpoints, err := r.LogCheckpoints(branch)
		if err != nil {
			return err
		}
		for _, c := range checkpoints {
			fmt.Printf("%s %s %s\n", c.Hash, c.Author, c.Message)
		}
		return nil

	case "serve":
		listen := "127.0.0.1:8080"
		if len(args) == 1 {
			listen = args[0]
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		srv := blendhttp.NewServer(listen, r)
		logrus.Infof("serving %s on %s", opts.Dir, listen)
		return srv.ListenAndServe()

	case "sync":
		if len(args) != 1 {
			return fmt.Errorf("usage: blend sync <peer-url>")
		}
		r, err := repo.Open(opts)
		if err != nil {
			return err
		}
		defer r.Close()
		client := blendhttp.NewClient(args[0])
		return r.Sync(client.Request)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
