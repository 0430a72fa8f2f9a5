package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user00265/dnstk/config"
	"github.com/user00265/dnstk/dns"
)

func writeRootHints(t *testing.T, dir, ip string) string {
	t.Helper()
	path := filepath.Join(dir, "root-hints.txt")
	content := ". 3600000 IN A " + ip + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write root hints: %v", err)
	}
	return path
}

// stubRootServer answers with a fixed NameError so server start-up
// tests don't need a live recursive chain behind them.
func stubRootServer(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var lenBuf [2]byte
				if _, err := readFull(conn, lenBuf[:]); err != nil {
					return
				}
				size := int(lenBuf[0])<<8 | int(lenBuf[1])
				data := make([]byte, size)
				if _, err := readFull(conn, data); err != nil {
					return
				}
				req, err := dns.ParseMessage(data)
				if err != nil {
					return
				}
				resp := dns.NewReply(req.Header.ID, dns.ResCodeNameError)
				raw, _ := resp.Serialize()
				out := []byte{byte(len(raw) >> 8), byte(len(raw))}
				out = append(out, raw...)
				conn.Write(out)
			}()
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestServerStartsWithRootHints(t *testing.T) {
	tmpDir := t.TempDir()
	rootHints := writeRootHints(t, tmpDir, "127.0.0.1")

	cfg := &config.Config{
		Server: config.ServerConfig{Bind: "127.0.0.1:0", Timeout: 5},
		Resolver: config.ResolverConfig{
			RootHintsFile: rootHints,
			Transport:     "tcp",
		},
	}

	srv, err := New(cfg, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Shutdown()

	go srv.ListenAndServe()
	time.Sleep(50 * time.Millisecond)

	t.Log("server started with root hints configured")
}

func TestServerMissingRootHintsFails(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Bind: "127.0.0.1:0", Timeout: 5},
		Resolver: config.ResolverConfig{RootHintsFile: "/nonexistent/root-hints.txt"},
	}

	_, err := New(cfg, "")
	if err == nil {
		t.Fatal("expected server creation to fail without a valid root hints file")
	}
}

func TestServerWithACLRules(t *testing.T) {
	tmpDir := t.TempDir()
	rootHints := writeRootHints(t, tmpDir, "127.0.0.1")

	cfg := &config.Config{
		Server:   config.ServerConfig{Bind: "127.0.0.1:0", Timeout: 5},
		Resolver: config.ResolverConfig{RootHintsFile: rootHints, Transport: "tcp"},
		ACLRule: config.ACLRuleSet{
			Allow: []string{"192.168.0.0/16", "10.0.0.0/8"},
			Deny:  []string{"203.0.113.0/24"},
		},
	}

	srv, err := New(cfg, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Shutdown()

	if srv.acl == nil || len(srv.acl.Allow) != 2 || len(srv.acl.Deny) != 1 {
		t.Fatalf("expected ACL rules to be loaded, got %+v", srv.acl)
	}

	t.Log("server loaded with inline ACL rules")
}

// TestServerUDPEndToEnd exercises the UDP listener against a stub
// root nameserver that immediately returns NameError.
func TestServerUDPEndToEnd(t *testing.T) {
	rootPort := stubRootServer(t)

	tmpDir := t.TempDir()
	rootHints := writeRootHints(t, tmpDir, "127.0.0.1")

	cfg := &config.Config{
		Server:   config.ServerConfig{Bind: "127.0.0.1:0", Timeout: 5},
		Resolver: config.ResolverConfig{RootHintsFile: rootHints, Transport: "tcp"},
	}

	srv, err := New(cfg, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Shutdown()

	// Point the resolver at the stub server's ephemeral port instead of 53.
	srv.resolver.Root.Port = rootPort

	udpAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("resolve udp addr: %v", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	srv.udpConn = udpConn
	srv.addr = udpConn.LocalAddr().String()

	go srv.serveUDP()
	time.Sleep(20 * time.Millisecond)

	client, err := net.Dial("udp", udpConn.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial udp: %v", err)
	}
	defer client.Close()

	req := dns.NewQuery(0x1234, dns.Domain{"example", "com"}, dns.TypeA, dns.ClassIN, true)
	raw, err := req.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	if _, err := client.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, udpMaxSize)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	resp, err := dns.ParseMessage(buf[:n])
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Header.ID != 0x1234 {
		t.Errorf("expected client id to round-trip, got %x", resp.Header.ID)
	}
	if resp.Header.RCode != dns.ResCodeNameError {
		t.Errorf("expected NameError, got %v", resp.Header.RCode)
	}
}

func TestServerDeniesByACL(t *testing.T) {
	tmpDir := t.TempDir()
	rootHints := writeRootHints(t, tmpDir, "127.0.0.1")

	cfg := &config.Config{
		Server:   config.ServerConfig{Bind: "127.0.0.1:0", Timeout: 5},
		Resolver: config.ResolverConfig{RootHintsFile: rootHints, Transport: "tcp"},
		ACLRule:  config.ACLRuleSet{Deny: []string{"127.0.0.1/32"}},
	}

	srv, err := New(cfg, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Shutdown()

	req := dns.NewQuery(7, dns.Domain{"example", "com"}, dns.TypeA, dns.ClassIN, true)
	raw, err := req.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	_, ok := srv.resolve(context.Background(), raw, net.ParseIP("127.0.0.1"), "udp")
	if ok {
		t.Fatal("expected query from a denied address to produce no reply")
	}
}
