//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// cloudboot-agent is the first-boot configuration agent's command-line
// front-end: it wires §4.A's Paths & State Store, §4.G's datasource
// drivers, and §4.J's stage scheduler together and dispatches one of the
// subcommands named in §6 (init, local, network, config, final, query,
// clean, status).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agentcfg"
	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/datasource/azure"
	"github.com/cloudboot-io/boot-agent/internal/datasource/ec2"
	"github.com/cloudboot-io/boot-agent/internal/datasource/gce"
	"github.com/cloudboot-io/boot-agent/internal/datasource/nocloud"
	"github.com/cloudboot-io/boot-agent/internal/datasource/openstack"
	"github.com/cloudboot-io/boot-agent/internal/stage"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

const programName = "cloudboot-agent"

var (
	verbosity = countingFlag{}
	stateDir  = flag.String("state-dir", "", "override the state root (default /var/lib/cloud)")
	configDir = flag.String("config-dir", "", "override the config root (default /etc/cloud)")
)

// countingFlag implements flag.Value so "-v" can be repeated to raise the
// verbosity level (§6: "Global flag -v / --verbose stackable for log
// levels (0=info, 1=debug, 2=trace)").
type countingFlag int

func (c *countingFlag) String() string { return fmt.Sprintf("%d", int(*c)) }
func (c *countingFlag) Set(string) error {
	*c++
	return nil
}
func (c *countingFlag) IsBoolFlag() bool { return true }

func main() {
	flag.Var(&verbosity, "v", "increase verbosity; repeat for more detail (-v, -vv)")
	flag.Var(&verbosity, "verbose", "alias for -v")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] <command> [args]\n\n", programName)
		fmt.Fprintf(os.Stderr, "commands:\n")
		fmt.Fprintf(os.Stderr, "  init              run all four stages (local, network, config, final)\n")
		fmt.Fprintf(os.Stderr, "  local             run the local (pre-network) stage\n")
		fmt.Fprintf(os.Stderr, "  network           run the network stage\n")
		fmt.Fprintf(os.Stderr, "  config            run the config stage\n")
		fmt.Fprintf(os.Stderr, "  final             run the final stage\n")
		fmt.Fprintf(os.Stderr, "  query <key>       print a persisted metadata field or the datasource name\n")
		fmt.Fprintf(os.Stderr, "  clean [--logs]    clear semaphores (and optionally instance state)\n")
		fmt.Fprintf(os.Stderr, "  status            print status.json\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init(context.Background(), logger.LogOpts{
		LoggerName: programName,
		Debug:      int(verbosity) >= 1,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	env, err := buildEnv()
	if err != nil {
		logger.Errorf("building environment: %v", err)
		os.Exit(1)
	}
	if err := env.Store.Initialize(); err != nil {
		logger.Errorf("initializing state tree: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, rest := args[0], args[1:]

	var runErr error
	switch cmd {
	case "init":
		runErr = stage.RunAll(ctx, env)
	case stage.Local, stage.Network, stage.Config, stage.Final:
		runErr = stage.Run(ctx, env, cmd)
	case "query":
		runErr = runQuery(env, rest)
	case "clean":
		runErr = runClean(env, rest)
	case "status":
		runErr = runStatus(env)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %s failed: %v\n", programName, cmd, runErr)
		os.Exit(1)
	}
}

// buildEnv assembles the stage.Env every subcommand shares: paths, state
// store, semaphore manager, agent configuration, and the priority-ordered
// datasource driver list named by agentcfg's Datasources.Enabled setting.
func buildEnv() (*stage.Env, error) {
	base := state.DefaultCloudDir
	if *stateDir != "" {
		base = *stateDir
	}
	config := state.DefaultConfigDir
	if *configDir != "" {
		config = *configDir
	}
	paths := state.NewPathsWithDirs(base, config)
	store := state.NewStore(paths)

	cfg, err := agentcfg.Load(paths.MainConfig())
	if err != nil {
		return nil, err
	}
	if cfg.System.StateDir != "" && *stateDir == "" {
		paths = state.NewPathsWithDirs(cfg.System.StateDir, config)
		store = state.NewStore(paths)
	}

	instanceID, _ := store.CachedInstanceID()
	sem := state.NewSemaphoreManager(paths, instanceID)

	return &stage.Env{
		Paths:      paths,
		Store:      store,
		Sem:        sem,
		Config:     cfg,
		Drivers:    buildDrivers(cfg),
		InstanceID: instanceID,
	}, nil
}

// driverFactories maps agentcfg's Datasources.enabled names to constructors,
// preserving §4.G's fixed priority order: the order callers list them in
// cloud.cfg, defaulting to EC2, Azure, GCE, OpenStack, NoCloud.
var driverFactories = map[string]func() datasource.Driver{
	"ec2":       func() datasource.Driver { return ec2.New() },
	"azure":     func() datasource.Driver { return azure.New() },
	"gce":       func() datasource.Driver { return gce.New() },
	"openstack": func() datasource.Driver { return openstack.New() },
	"nocloud":   func() datasource.Driver { return nocloud.New() },
}

func buildDrivers(cfg *agentcfg.Sections) []datasource.Driver {
	var drivers []datasource.Driver
	for _, name := range cfg.EnabledDatasources() {
		if factory, ok := driverFactories[strings.ToLower(name)]; ok {
			drivers = append(drivers, factory())
		} else {
			logger.Warningf("unknown datasource %q in configuration, skipping", name)
		}
	}
	return drivers
}

// runQuery implements the supplemented `query <key>` verb (SPEC_FULL.md):
// it reads the persisted instance metadata (and, for the "datasource" key,
// the saved datasource name) for the current instance rather than
// re-probing a datasource, since IMDSv2 tokens are not idempotent to
// re-fetch outside the Network stage. Cloud-config fields are not served.
func runQuery(env *stage.Env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("query requires exactly one key")
	}
	if env.InstanceID == "" {
		return fmt.Errorf("no instance id recorded yet; run the network stage first")
	}

	meta, err := env.Store.LoadMetadata(env.InstanceID)
	if err != nil {
		return err
	}

	switch args[0] {
	case "instance_id":
		fmt.Println(meta.InstanceID)
	case "local_hostname":
		fmt.Println(meta.LocalHostname)
	case "region":
		fmt.Println(meta.Region)
	case "availability_zone":
		fmt.Println(meta.AvailabilityZone)
	case "cloud_name":
		fmt.Println(meta.CloudName)
	case "platform":
		fmt.Println(meta.Platform)
	case "instance_type":
		fmt.Println(meta.InstanceType)
	case "datasource":
		data, err := os.ReadFile(env.Paths.DatasourceFile(env.InstanceID))
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown query key %q", args[0])
	}
	return nil
}

// runClean clears semaphores so modules re-run on the next boot stage
// invocation. With --logs it additionally removes the current instance's
// entire persisted directory (§4.A Invariant 1: "removing that directory
// erases instance state").
func runClean(env *stage.Env, args []string) error {
	removeLogs := false
	for _, a := range args {
		if a == "--logs" {
			removeLogs = true
		}
	}

	if err := env.Sem.ClearAll(); err != nil {
		return err
	}

	if removeLogs && env.InstanceID != "" {
		if err := os.RemoveAll(env.Paths.InstanceDir(env.InstanceID)); err != nil {
			return err
		}
	}
	return nil
}

func runStatus(env *stage.Env) error {
	data, err := os.ReadFile(env.Paths.StatusFile())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("{}")
			return nil
		}
		return err
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Println(string(data))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
