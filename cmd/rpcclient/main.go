/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command rpcclient is a sample RPC client binary: it dials a server,
// issues one call against either the demo Echo service or the built-in
// service, prints the result and exits.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nabbar/rpcx/config"
	"github.com/nabbar/rpcx/logger"
	"github.com/nabbar/rpcx/reactor"
	"github.com/nabbar/rpcx/rpc"
	"github.com/nabbar/rpcx/rpc/client"
)

var (
	flagAddr    string
	flagConfig  string
	flagBody    string
	flagTimeout time.Duration
	flagMethod  string
)

func main() {
	root := &cobra.Command{
		Use:   "rpcclient",
		Short: "Sample RPC client",
		Long:  "Dials a server and issues one call, printing the completion.",
		RunE:  runClient,
	}

	root.Flags().StringVar(&flagAddr, "addr", "127.0.0.1:9000", "server address")
	root.Flags().StringVar(&flagConfig, "config", "", "path to a JSON/YAML/TOML config file (see config.Config)")
	root.Flags().StringVar(&flagMethod, "method", "Echo", "method name: Echo, HeartBeat or Services")
	root.Flags().StringVar(&flagBody, "body", "hello", "request body for Echo")
	root.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "per-call timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rawPayload struct{ body []byte }

func (p *rawPayload) Marshal() ([]byte, error) { return p.body, nil }
func (p *rawPayload) Unmarshal(b []byte) error { p.body = append([]byte(nil), b...); return nil }

func runClient(_ *cobra.Command, _ []string) error {
	log := logger.New()

	loader := config.NewLoader(log)
	if flagConfig != "" {
		if err := loader.SetConfigFile(flagConfig); err != nil {
			return fmt.Errorf("config file: %s", err.Error())
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("config load: %s", err.Error())
	}

	l, err := reactor.NewLoop(log)
	if err != nil {
		return fmt.Errorf("loop: %s", err.Error())
	}
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = l.Run()
	}()
	<-ready
	defer l.Quit()

	ch, err := client.NewChannel(l, log, cfg.Client.ToChannelOptions())
	if err != nil {
		return fmt.Errorf("new channel: %s", err.Error())
	}
	defer ch.Close()
	ch.Connect(flagAddr)

	time.Sleep(50 * time.Millisecond) // let the resolver/connector establish before issuing the call

	service, desc, req := buildCall()

	ctrl := rpc.NewController()
	desc.ServiceTimeout = flagTimeout

	var wg sync.WaitGroup
	wg.Add(1)
	var result rpc.Payload
	ch.CallMethod(service, desc.Name, desc, ctrl, req,
		func() rpc.Payload { return &rawPayload{} },
		func(c *rpc.Controller, resp rpc.Payload) {
			result = resp
			wg.Done()
		})
	wg.Wait()

	if ctrl.Failed() {
		return fmt.Errorf("call failed: %s: %s", ctrl.ErrorKind(), ctrl.ErrorText())
	}
	if rp, ok := result.(*rawPayload); ok {
		fmt.Println(string(rp.body))
	}
	return nil
}

func buildCall() (service string, desc *rpc.MethodDescriptor, req rpc.Payload) {
	switch flagMethod {
	case "HeartBeat", "Services":
		return "rpcx.BuiltinService", &rpc.MethodDescriptor{Name: flagMethod}, &rawPayload{}
	default:
		return "rpcx.samples.Echo", &rpc.MethodDescriptor{Name: "Echo"}, &rawPayload{body: []byte(flagBody)}
	}
}
