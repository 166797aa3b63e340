/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"artdao/internal/cli"
	"artdao/internal/config"
	"artdao/internal/crash"
	applog "artdao/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	// logging from the environment until the config file has been read
	applog.Init(applog.FromEnv())
	stateDir, _ := config.StateDir()
	defer crash.Recover(stateDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.Execute(ctx, os.Args[1:])
}
