// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command runtimed wires the nine governed-execution-runtime components
// together and keeps them alive. It is a library host, not an HTTP or
// gRPC server: transports are out of scope for this module, so it exists
// to prove the wiring compiles and to give an embedder a single
// constructed *runtimewire.Runtime to build a transport on top of.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"neurorail/internal/config"
	"neurorail/internal/runtimewire"
	"neurorail/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to a config file overlaying defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	rt, err := runtimewire.New(cfg, logger)
	if err != nil {
		logger.Error("wire runtime: " + err.Error())
		os.Exit(1)
	}

	logger.Info("runtime wired, entering standby")
	_ = rt

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, exiting")
}
