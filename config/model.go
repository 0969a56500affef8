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

package config

import (
	"github.com/nabbar/rpcx/rpc"
	"github.com/nabbar/rpcx/rpc/client"
	"github.com/nabbar/rpcx/rpc/server"
)

// defaultHighWaterMark is the §6.5 connection default: 64 MiB of queued,
// unacknowledged output before a connection is considered backed up.
const defaultHighWaterMark = 64 * 1024 * 1024

// ClientOptions mirrors the client-channel fields of §6.5.
type ClientOptions struct {
	ResolverName string  `mapstructure:"resolver_name"`
	BalancerName string  `mapstructure:"loadbalancer_name"`
	TraceRate    float64 `mapstructure:"trace_rate"`
}

// ToChannelOptions builds the rpc/client.Options this model decodes into.
func (c ClientOptions) ToChannelOptions() client.Options {
	return client.Options{
		ResolverName: c.ResolverName,
		BalancerName: c.BalancerName,
		TraceRate:    c.TraceRate,
		CompressType: rpc.CompressNone,
	}
}

// ServerOptions mirrors the server fields of §6.5. Of the Disable* flags
// only DisableBuiltinService gates behavior in this implementation; the
// other flags round-trip for parity with the option set, while Sync sizes
// the server's worker pool (see the doc comment on server.Options).
type ServerOptions struct {
	DisableForm           bool `mapstructure:"disable_form"`
	DisableJSON           bool `mapstructure:"disable_json"`
	DisableFlags          bool `mapstructure:"disable_flags"`
	DisablePProf          bool `mapstructure:"disable_pprof"`
	DisableStatistics     bool `mapstructure:"disable_statistics"`
	DisableBuiltinService bool `mapstructure:"disable_builtin_service"`
	Sync                  int  `mapstructure:"sync_workers"`
}

// ToServerOptions builds the rpc/server.Options this model decodes into.
// highWaterMark is threaded in separately since it lives under the
// connection section, not the server section, of the decoded document.
func (s ServerOptions) ToServerOptions(highWaterMark int) server.Options {
	return server.Options{
		DisableForm:           s.DisableForm,
		DisableJSON:           s.DisableJSON,
		DisableFlags:          s.DisableFlags,
		DisablePProf:          s.DisablePProf,
		DisableStatistics:     s.DisableStatistics,
		DisableBuiltinService: s.DisableBuiltinService,
		Sync:                  s.Sync,
		HighWaterMark:         highWaterMark,
	}
}

// ConnectionOptions mirrors the connection field of §6.5.
type ConnectionOptions struct {
	HighWaterMark int `mapstructure:"high_water_mark"`
}

// Config is the full decoded document: client, server and connection
// option sets under their own top-level keys.
type Config struct {
	Client     ClientOptions     `mapstructure:"client"`
	Server     ServerOptions     `mapstructure:"server"`
	Connection ConnectionOptions `mapstructure:"connection"`
}

func defaultConfig() Config {
	return Config{
		Client: ClientOptions{
			ResolverName: "list",
			BalancerName: "round_robin",
			TraceRate:    0,
		},
		Connection: ConnectionOptions{
			HighWaterMark: defaultHighWaterMark,
		},
	}
}
