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
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	liberr "github.com/nabbar/rpcx/errors"
	"github.com/nabbar/rpcx/reactor"
)

// Loader decodes the option sets from a viper source and, once Watch is
// armed, re-decodes on every write to the backing file, the way a
// hot-reloaded component pool stays in sync with its config file.
type Loader struct {
	v   *viper.Viper
	log reactor.Logger

	mu  sync.RWMutex
	cur Config

	onChange []func(Config)
}

// NewLoader builds a Loader seeded with the §6.5 defaults (resolver_name
// "list", loadbalancer_name "round_robin", trace_rate 0, a 64 MiB
// high_water_mark) and no backing file; call SetConfigFile before Load to
// read one.
func NewLoader(log reactor.Logger) *Loader {
	v := viper.New()
	v.SetEnvPrefix("RPCX")
	v.AutomaticEnv()

	l := &Loader{v: v, log: log, cur: defaultConfig()}
	l.applyDefaults()
	return l
}

func (l *Loader) applyDefaults() {
	d := defaultConfig()
	l.v.SetDefault("client.resolver_name", d.Client.ResolverName)
	l.v.SetDefault("client.loadbalancer_name", d.Client.BalancerName)
	l.v.SetDefault("client.trace_rate", d.Client.TraceRate)
	l.v.SetDefault("server.disable_form", false)
	l.v.SetDefault("server.disable_json", false)
	l.v.SetDefault("server.disable_flags", false)
	l.v.SetDefault("server.disable_pprof", false)
	l.v.SetDefault("server.disable_statistics", false)
	l.v.SetDefault("server.disable_builtin_service", false)
	l.v.SetDefault("server.sync_workers", 0)
	l.v.SetDefault("connection.high_water_mark", d.Connection.HighWaterMark)
}

// SetConfigFile points the loader at a file on disk; the format is
// inferred from its extension (viper supports json, yaml, toml...).
func (l *Loader) SetConfigFile(path string) liberr.Error {
	if _, e := os.Stat(path); e != nil {
		return ErrorConfigFileMissing.Error(e)
	}
	l.v.SetConfigFile(path)
	return nil
}

// Load reads the backing file, if one was set, and decodes it (over the
// defaults) into the current Config.
func (l *Loader) Load() (Config, liberr.Error) {
	if l.v.ConfigFileUsed() != "" {
		if e := l.v.ReadInConfig(); e != nil {
			return Config{}, ErrorConfigFileRead.Error(e)
		}
	}

	cfg := defaultConfig()
	if e := l.v.Unmarshal(&cfg); e != nil {
		return Config{}, ErrorConfigDecode.Error(e)
	}
	if cfg.Client.ResolverName == "" {
		return Config{}, ErrorResolverName.Error(nil)
	}
	if cfg.Client.BalancerName == "" {
		return Config{}, ErrorBalancerName.Error(nil)
	}

	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the most recently loaded Config.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// OnChange registers a callback invoked with the newly decoded Config
// after every successful reload triggered by Watch. Registration order is
// preserved; a callback that itself needs the old value should capture it
// before calling Current again.
func (l *Loader) OnChange(fn func(Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch arms fsnotify-backed hot reload on the backing file set via
// SetConfigFile: every write re-runs Load and fans the result out to every
// OnChange callback. A decode failure on reload is logged and the prior
// Config is kept in place.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			if l.log != nil {
				l.log.Errorf("config: reload failed: %s", err.Error())
			}
			return
		}

		l.mu.RLock()
		cbs := append([]func(Config){}, l.onChange...)
		l.mu.RUnlock()
		for _, cb := range cbs {
			cb(cfg)
		}
	})
	l.v.WatchConfig()
}
