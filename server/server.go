// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package server implements the resolver's front end: UDP and TCP
// listeners bound to the same port that parse an inbound request,
// hand it to the resolver, and reply with truncation-aware framing
// per RFC 1035 §4.2.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user00265/dnstk/acl"
	"github.com/user00265/dnstk/config"
	"github.com/user00265/dnstk/dns"
	"github.com/user00265/dnstk/metrics"
	"github.com/user00265/dnstk/resolver"
	"github.com/user00265/dnstk/transport"
)

// udpMaxSize is the RFC 1035 §4.2.1 UDP response size ceiling.
const udpMaxSize = 512

// Server fronts a Resolver with a UDP and a TCP listener on the same port.
type Server struct {
	configPath     string
	configMgr      *config.ConfigManager
	cfg            *config.Config
	cfgMu          sync.RWMutex
	resolver       *resolver.Resolver
	resolverMu     sync.RWMutex
	acl            *acl.ACL
	aclMu          sync.RWMutex
	udpConn        *net.UDPConn
	tcpListener    net.Listener
	addr           string
	resolveTimeout time.Duration
	done           atomic.Bool
	metrics        *metrics.Metrics
	watcher        *fsnotify.Watcher
	autoReload     bool
	reloadDebounce time.Duration
	reloadTimer    *time.Timer
	reloadMu       sync.Mutex
}

// New builds a Server from cfg: it loads the root-hints file into a
// Resolver, the ACL (inline rules take priority over an ACL file), and
// starts metrics and config/file watching.
func New(cfg *config.Config, configPath string) (*Server, error) {
	srv := &Server{
		configPath:     configPath,
		cfg:            cfg,
		addr:           cfg.Server.Bind,
		autoReload:     cfg.Server.AutoReload,
		reloadDebounce: time.Duration(cfg.Server.ReloadDebounce) * time.Second,
		resolveTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
	}

	if srv.reloadDebounce == 0 {
		srv.reloadDebounce = 2 * time.Second
	}
	if srv.resolveTimeout == 0 {
		srv.resolveTimeout = 5 * time.Second
	}

	var err error
	srv.metrics, err = metrics.New(cfg.Metrics.OTELEndpoint, cfg.Metrics.PrometheusEndpoint)
	if err != nil {
		log.Printf("warning: failed to initialize metrics: %v", err)
	}

	if err := srv.loadResolver(cfg); err != nil {
		return nil, err
	}

	if err := srv.loadACL(cfg); err != nil {
		return nil, err
	}

	if configPath != "" {
		configMgr, err := config.NewConfigManager(configPath, srv.handleConfigReload)
		if err != nil {
			log.Printf("warning: failed to initialize config manager: %v", err)
		} else {
			srv.configMgr = configMgr
			if err := configMgr.Start(); err != nil {
				log.Printf("warning: failed to start config manager: %v", err)
			}
		}
	}

	if srv.autoReload {
		if err := srv.initFileWatcher(cfg); err != nil {
			log.Printf("warning: failed to initialize file watcher: %v", err)
			log.Printf("automatic reload disabled, use SIGHUP for manual reload")
			srv.autoReload = false
		} else {
			log.Printf("automatic root-hints/ACL file monitoring enabled (debounce: %v)", srv.reloadDebounce)
		}
	}

	return srv, nil
}

func parseTransportSelector(name string) transport.Selector {
	switch name {
	case "udp":
		return transport.UDP
	case "tcp", "":
		return transport.TCP
	case "tls":
		return transport.TLSTransport
	case "doh":
		return transport.DoH
	case "unspecified":
		return transport.Unspecified
	case "unspecified-encrypted":
		return transport.UnspecifiedEncrypted
	case "try-encrypted":
		return transport.TryEncrypted
	default:
		log.Printf("warning: unrecognized resolver.transport %q, defaulting to tcp", name)
		return transport.TCP
	}
}

func (s *Server) loadResolver(cfg *config.Config) error {
	if cfg.Resolver.RootHintsFile == "" {
		return fmt.Errorf("resolver.root_hints_file is required")
	}

	rootIP, err := config.LoadRootHints(cfg.Resolver.RootHintsFile)
	if err != nil {
		return fmt.Errorf("failed to load root hints: %w", err)
	}

	r := resolver.New(transport.Endpoint{Host: rootIP.String(), Port: 53})
	r.Transport = parseTransportSelector(cfg.Resolver.Transport)

	s.resolverMu.Lock()
	s.resolver = r
	s.resolverMu.Unlock()

	log.Printf("resolver root: %s (transport: %s)", rootIP, r.Transport)
	return nil
}

func (s *Server) loadACL(cfg *config.Config) error {
	var (
		a   *acl.ACL
		err error
	)

	if len(cfg.ACLRule.Allow) > 0 || len(cfg.ACLRule.Deny) > 0 {
		a, err = acl.FromRules(cfg.ACLRule.Allow, cfg.ACLRule.Deny)
		if err != nil {
			return fmt.Errorf("failed to parse inline ACL rules: %w", err)
		}
		log.Printf("loaded inline ACL: allow=%d, deny=%d", len(a.Allow), len(a.Deny))
	} else if cfg.Resolver.ACLFile != "" {
		a, err = acl.LoadACL(cfg.Resolver.ACLFile)
		if err != nil {
			return fmt.Errorf("failed to load ACL file: %w", err)
		}
		log.Printf("loaded ACL file: %s", cfg.Resolver.ACLFile)
	} else {
		a = &acl.ACL{}
	}

	s.aclMu.Lock()
	s.acl = a
	s.aclMu.Unlock()

	return nil
}

// Reload re-reads the root-hints file and ACL file from disk. When a
// config file is in use, it takes the paths from the ConfigManager's
// most recently loaded config (the manager re-reads the file when it
// changes; Reload itself does not); without one (started with just
// -r/-b flags), it re-applies the last in-memory config, since there is
// no file for a ConfigManager to watch.
func (s *Server) Reload() error {
	var cfg *config.Config
	if s.configMgr != nil {
		cfg = s.configMgr.Get()
	} else {
		s.cfgMu.RLock()
		cfg = s.cfg
		s.cfgMu.RUnlock()
	}
	if cfg == nil {
		return fmt.Errorf("server: no configuration available to reload")
	}

	if err := s.loadResolver(cfg); err != nil {
		return err
	}
	return s.loadACL(cfg)
}

// handleConfigReload is called by ConfigManager when the config file changes.
func (s *Server) handleConfigReload(newCfg *config.Config, changes config.Changes) error {
	s.cfgMu.Lock()
	s.cfg = newCfg
	s.cfgMu.Unlock()

	if changes.ServerChanged && s.addr != newCfg.Server.Bind {
		log.Printf("bind address changed from %s to %s (requires restart)", s.addr, newCfg.Server.Bind)
		s.addr = newCfg.Server.Bind
	}

	if changes.ResolverChanged {
		if err := s.loadResolver(newCfg); err != nil {
			log.Printf("ERROR: failed to reload resolver config: %v (keeping previous resolver)", err)
		}
	}

	if changes.ACLRulesChanged {
		if err := s.loadACL(newCfg); err != nil {
			log.Printf("ERROR: failed to reload ACL: %v (keeping previous ACL)", err)
		}
	}

	return nil
}

// ListenAndServe starts the UDP and TCP listeners and blocks until
// Shutdown is called. It returns an error only when a listener cannot be
// opened; read errors inside the UDP loop are logged and skipped.
func (s *Server) ListenAndServe() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.udpConn = udpConn

	tcpListener, err := net.Listen("tcp", s.addr)
	if err != nil {
		udpConn.Close()
		return err
	}
	s.tcpListener = tcpListener

	log.Printf("listening on %s (udp+tcp)", s.addr)

	go s.serveTCP()
	return s.serveUDP()
}

// serveUDP runs a single-threaded UDP loop: one request is fully
// handled, reply written, before the next recv.
func (s *Server) serveUDP() error {
	defer s.udpConn.Close()

	buf := make([]byte, udpMaxSize)
	for !s.done.Load() {
		s.udpConn.SetReadDeadline(time.Now().Add(time.Second))
		n, remoteAddr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.done.Load() {
				return nil
			}
			log.Printf("udp read error: %v", err)
			continue
		}

		s.handleUDPRequest(buf[:n], remoteAddr)
	}

	return nil
}

func (s *Server) handleUDPRequest(data []byte, remoteAddr *net.UDPAddr) {
	startTime := time.Now()

	resp, ok := s.resolve(context.Background(), data, remoteAddr.IP, "udp")
	if !ok {
		return
	}

	raw, err := resp.Serialize()
	if err != nil {
		log.Printf("udp serialize error: %v", err)
		s.metrics.RecordError("udp", "serialize_error")
		return
	}

	if len(raw) > udpMaxSize {
		raw[2] |= 0x02 // is_truncated bit
		raw = raw[:udpMaxSize]
		log.Printf("udp response to %s truncated", remoteAddr)
	}

	if _, err := s.udpConn.WriteToUDP(raw, remoteAddr); err != nil {
		log.Printf("udp write error: %v", err)
		s.metrics.RecordError("udp", "write_error")
	}

	s.metrics.RecordLatency("udp", time.Since(startTime).Seconds()*1000)
}

// serveTCP accepts connections until Shutdown closes the listener,
// handling each on its own goroutine per RFC 1035 §4.2.2.
func (s *Server) serveTCP() {
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			if s.done.Load() {
				return
			}
			log.Printf("tcp accept error: %v", err)
			continue
		}

		go s.handleTCPConn(conn)
	}
}

func (s *Server) handleTCPConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	var lenBuf [2]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return
	}
	size := int(lenBuf[0])<<8 | int(lenBuf[1])

	data := make([]byte, size)
	if _, err := readFull(conn, data); err != nil {
		return
	}

	startTime := time.Now()

	remoteIP := tcpRemoteIP(conn)
	resp, ok := s.resolve(context.Background(), data, remoteIP, "tcp")
	if !ok {
		return
	}

	raw, err := resp.Serialize()
	if err != nil {
		log.Printf("tcp serialize error: %v", err)
		s.metrics.RecordError("tcp", "serialize_error")
		return
	}

	out := make([]byte, 2, 2+len(raw))
	out[0] = byte(len(raw) >> 8)
	out[1] = byte(len(raw))
	out = append(out, raw...)

	if _, err := conn.Write(out); err != nil {
		log.Printf("tcp write error: %v", err)
		s.metrics.RecordError("tcp", "write_error")
		return
	}

	s.metrics.RecordLatency("tcp", time.Since(startTime).Seconds()*1000)
}

// resolve parses data, applies the client-source ACL, and invokes the
// resolver. ok is false only when no reply should be sent at all: the
// client is denied by ACL, or data could not even be parsed far enough
// to recover an id.
func (s *Server) resolve(ctx context.Context, data []byte, remoteIP net.IP, transportName string) (dns.Message, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	s.aclMu.RLock()
	a := s.acl
	s.aclMu.RUnlock()

	if a != nil && !a.AllowQuery(remoteIP) {
		log.Printf("query denied by ACL: %s", remoteIP)
		s.metrics.RecordError(transportName, "acl_denied")
		return dns.Message{}, false
	}

	req, err := dns.ParseMessage(data)
	if err != nil {
		log.Printf("%s parse error: %v", transportName, err)
		s.metrics.RecordError(transportName, "parse_error")
		if len(data) < 2 {
			return dns.Message{}, false
		}
		reply := dns.NewReply(uint16(data[0])<<8|uint16(data[1]), dns.ResCodeServerFailure)
		reply.Header.RecursionAvailable = true
		s.metrics.RecordOutcome(reply.Header.RCode.String())
		return reply, true
	}

	if len(req.Questions) == 1 {
		s.metrics.RecordQuery(transportName, strconv.Itoa(int(req.Questions[0].QType)))
	}

	s.resolverMu.RLock()
	r := s.resolver
	s.resolverMu.RUnlock()

	resp, hops, ok := r.Resolve(ctx, req)
	if ok {
		s.metrics.RecordOutcome(resp.Header.RCode.String())
		s.metrics.RecordHops(hops)
	}
	return resp, ok
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func tcpRemoteIP(conn net.Conn) net.IP {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

// Shutdown gracefully shuts down the server with a timeout.
func (s *Server) Shutdown() {
	const shutdownTimeout = 5 * time.Second

	log.Println("initiating graceful shutdown (5s timeout)")

	s.done.Store(true)

	if s.udpConn != nil {
		s.udpConn.Close()
	}
	if s.tcpListener != nil {
		s.tcpListener.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil && err != context.DeadlineExceeded {
			log.Printf("metrics server shutdown error: %v", err)
		}
	}

	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	if s.configMgr != nil {
		s.configMgr.Stop()
	}

	log.Println("shutdown initiated; in-flight requests are not waited for")
}

// initFileWatcher watches the root-hints and ACL files for changes.
func (s *Server) initFileWatcher(cfg *config.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	s.watcher = watcher

	filesToWatch := make(map[string]bool)
	if cfg.Resolver.RootHintsFile != "" {
		filesToWatch[cfg.Resolver.RootHintsFile] = true
	}
	if cfg.Resolver.ACLFile != "" {
		filesToWatch[cfg.Resolver.ACLFile] = true
	}

	for file := range filesToWatch {
		if err := watcher.Add(file); err != nil {
			log.Printf("warning: failed to watch file %s: %v", file, err)
		} else {
			log.Printf("watching file: %s", file)
		}
	}

	go s.watchFiles()
	return nil
}

func (s *Server) watchFiles() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Printf("detected file change: %s (op: %v)", event.Name, event.Op)
				s.scheduleReload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("file watcher error: %v", err)
		}
	}
}

func (s *Server) scheduleReload() {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}

	s.reloadTimer = time.AfterFunc(s.reloadDebounce, func() {
		log.Printf("reloading root hints/ACL due to file changes")
		startTime := time.Now()

		if err := s.Reload(); err != nil {
			log.Printf("failed to reload: %v", err)
		} else {
			log.Printf("reloaded successfully in %v", time.Since(startTime))
		}
	})
}
