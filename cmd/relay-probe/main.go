// relay-probe connects to a running relay, joins a room, sends one message
// and prints every frame it receives until the timeout. It is a manual
// end-to-end check for a deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/identity"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/protocol"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay WebSocket URL")
	room := flag.String("room", "r1", "room to join")
	user := flag.String("user", "probe", "user id")
	text := flag.String("text", "hello from relay-probe", "message to send; empty sends nothing")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret; empty uses identity headers")
	issuer := flag.String("issuer", os.Getenv("JWT_ISSUER"), "token issuer")
	audience := flag.String("audience", os.Getenv("JWT_AUDIENCE"), "token audience")
	wait := flag.Duration("wait", 5*time.Second, "how long to listen")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, *wait)
	defer cancel()

	ident := domain.Identity{UserID: *user, Username: *user}
	conn, err := dial(ctx, *addr, ident, *secret, *issuer, *audience)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	if err := write(conn, protocol.EventJoinRoom, protocol.RoomPayload{RoomID: *room, UserID: *user, Username: *user}); err != nil {
		log.Fatalf("join: %v", err)
	}
	if *text != "" {
		err := write(conn, protocol.EventSendMessage, protocol.SendMessagePayload{
			RoomID:  *room,
			Message: protocol.ClientMessage{Text: *text},
		})
		if err != nil {
			log.Fatalf("send: %v", err)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("read: %v", err)
			}
			return
		}
		frame, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("undecodable frame: %s", raw)
			continue
		}
		fmt.Printf("%-12s %s\n", frame.Event, frame.Data)
	}
}

func dial(ctx context.Context, addr string, ident domain.Identity, secret, issuer, audience string) (*websocket.Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if secret != "" {
		token, err := identity.Sign(secret, ident, issuer, audience, time.Hour)
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	} else {
		header.Set(identity.HeaderUserID, ident.UserID)
		header.Set(identity.HeaderUsername, ident.Username)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil && resp != nil {
		return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
	}
	return conn, err
}

func write(conn *websocket.Conn, event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}
