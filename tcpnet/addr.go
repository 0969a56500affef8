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

package tcpnet

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/rpcx/errors"
)

// Addr is an IPv4 host:port pair, the module's sole address representation.
type Addr struct {
	IP   [4]byte
	Port int
}

func (a *Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

func (a *Addr) sockaddr() *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: a.Port, Addr: a.IP}
}

func fromSockaddr(sa unix.Sockaddr) *Addr {
	if v, ok := sa.(*unix.SockaddrInet4); ok {
		return &Addr{IP: v.Addr, Port: v.Port}
	}
	return &Addr{}
}

// ParseAddr parses "host:port", resolving host through the standard
// resolver if it is not already a dotted-quad.
func ParseAddr(hostport string) (*Addr, liberr.Error) {
	host, portStr, e := net.SplitHostPort(hostport)
	if e != nil {
		return nil, ErrorAddrParse.ErrorParent(e)
	}

	port, e := strconv.Atoi(portStr)
	if e != nil {
		return nil, ErrorAddrParse.ErrorParent(e)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, e := net.LookupIP(host)
		if e != nil || len(ips) == 0 {
			return nil, ErrorAddrParse.ErrorParent(e)
		}
		ip = ips[0]
	}

	v4 := ip.To4()
	if v4 == nil {
		return nil, ErrorAddrParse.Error(nil)
	}

	a := &Addr{Port: port}
	copy(a.IP[:], v4)
	return a, nil
}

// Equal reports whether two addresses denote the same host and port.
func (a *Addr) Equal(o *Addr) bool {
	if o == nil {
		return false
	}
	return a.IP == o.IP && a.Port == o.Port
}

// SplitHostPorts parses a comma/semicolon separated "host:port,host:port"
// list, as consumed by the static list resolver.
func SplitHostPorts(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
