package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// A session socket is mostly idle between timer pushes and autosave bursts:
// writes get a short deadline, reads wait out a full autosave interval.
const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends one event frame on the session socket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError reports a failure on the socket without closing it.
func WriteError(conn *websocket.Conn, msg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: msg,
	})
}

// ReadJSON decodes the next client frame, giving up after readWait.
func ReadJSON(conn *websocket.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
