package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"nhooyr.io/websocket"

	"seasonfarm/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsBuffer       = 128
)

// eventFilter selects which committed events a stream receives. Empty fields
// match everything.
type eventFilter struct {
	typePrefixes []string
	contracts    map[string]struct{}
	tokenID      string
}

// parseEventFilter reads the comma separated "type" prefixes, "contract"
// addresses and the "tokenId" query parameters.
func parseEventFilter(query url.Values) (eventFilter, error) {
	filter := eventFilter{typePrefixes: splitList(query.Get("type"))}
	for _, raw := range splitList(query.Get("contract")) {
		if !common.IsHexAddress(raw) {
			return filter, fmt.Errorf("invalid contract address %q", raw)
		}
		if filter.contracts == nil {
			filter.contracts = make(map[string]struct{})
		}
		filter.contracts[common.HexToAddress(raw).Hex()] = struct{}{}
	}
	if raw := strings.TrimSpace(query.Get("tokenId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid tokenId %q", raw)
		}
		filter.tokenID = strconv.FormatUint(id, 10)
	}
	return filter, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (f eventFilter) match(evt *types.Event) bool {
	if evt == nil {
		return false
	}
	if len(f.typePrefixes) > 0 {
		matched := false
		for _, prefix := range f.typePrefixes {
			if strings.HasPrefix(evt.Type, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.contracts != nil {
		if _, ok := f.contracts[evt.Contract]; !ok {
			return false
		}
	}
	if f.tokenID != "" && evt.Attributes["tokenId"] != f.tokenID {
		return false
	}
	return true
}

// handleEventsWS streams committed events matching the query filter as JSON
// text frames.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream failed", "error", err.Error())
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter eventFilter) error {
	updates, cancel := s.feed.Subscribe(wsBuffer)
	defer cancel()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return err
			}
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			payload := evt.Event()
			if !filter.match(payload) {
				continue
			}
			if err := writeFrame(ctx, conn, payload); err != nil {
				return err
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, payload *types.Event) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
