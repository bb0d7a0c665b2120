// Package main runs a demo WebSocket client for dataset events.
//
//	go run ./cmd/wsclient dealers ./dealers.xlsx
//
// It subscribes to the dataset over /v1/ws, uploads the file as a new
// import and prints the events that arrive.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string         `json:"type"`
	Dataset string         `json:"dataset,omitempty"`
	Event   string         `json:"event,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <dataset> <file>", filepath.Base(os.Args[0]))
	}
	dataset, path := os.Args[1], os.Args[2]
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	tenant := os.Getenv("TENANT")
	if tenant == "" {
		tenant = "t_demo"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", tenant)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	if err := c.WriteJSON(wsMessage{Type: "subscribe", Dataset: dataset}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s %s %s %v", m.Type, m.Dataset, m.Event+m.Message, m.Data)
		}
	}()

	time.Sleep(300 * time.Millisecond)
	if err := uploadFile(base, tenant, dataset, path); err != nil {
		log.Fatal(err)
	}

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

func uploadFile(base, tenant, dataset, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/admin/datasets/"+dataset+"/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Tenant-Id", tenant)
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	out, _ := io.ReadAll(resp.Body)
	log.Printf("upload %s: %s %s", path, resp.Status, bytes.TrimSpace(out))
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}
