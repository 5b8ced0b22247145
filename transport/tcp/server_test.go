// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func dialRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Failed to connect to server after retries, last error: %v", err)
	return nil
}

func TestServer_Start_And_Handle(t *testing.T) {
	// 1. Setup Server on pre-allocated port to avoid race on reading s.listener
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close() // Close so Server can bind to it immediately

	s := NewServer(addr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, line string) (string, error) {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
		if line == "05XYZ" {
			return "", errors.New("unknown command")
		}
		return "\x0205S\x03", nil
	}

	go s.Start(ctx, handler)

	conn := dialRetry(t, addr)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	// 2. CR terminated, as a pump terminal would send
	if _, err := conn.Write([]byte("05RUN\r")); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}
	reply, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if reply != "\x0205S\x03\n" {
		t.Errorf("reply = %q", reply)
	}

	// 3. Handler failure becomes an ERR line; blank lines are skipped
	if _, err := conn.Write([]byte("\n05XYZ\n")); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}
	reply, err = reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if reply != "ERR unknown command\n" {
		t.Errorf("reply = %q", reply)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "05RUN" || seen[1] != "05XYZ" {
		t.Errorf("handler saw %q", seen)
	}
}

func TestServer_LifeCycle(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx, func(ctx context.Context, line string) (string, error) {
			return line, nil
		})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestScanLines(t *testing.T) {
	adv, tok, _ := scanLines([]byte("RUN\rSTP"), false)
	if adv != 4 || string(tok) != "RUN" {
		t.Errorf("scanLines = %d %q", adv, tok)
	}
	adv, tok, _ = scanLines([]byte("STP"), false)
	if adv != 0 || tok != nil {
		t.Errorf("partial line = %d %q", adv, tok)
	}
	adv, tok, _ = scanLines([]byte("STP"), true)
	if adv != 3 || string(tok) != "STP" {
		t.Errorf("final line = %d %q", adv, tok)
	}
}
