package controllers

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yassineAchour0609/MediLink-sub000/models"
	"github.com/yassineAchour0609/MediLink-sub000/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 8 * 1024
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer in front.
		return true
	},
}

// wsConn is one upgraded connection. It is the handle the registry tracks
// and the dispatcher pushes through.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	room string
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking. A full buffer means the peer cannot
// keep up; the frame is dropped per the at-most-once contract.
func (w *wsConn) Send(frame []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.send <- frame:
		return true
	case <-w.done:
		return false
	default:
		return false
	}
}

func (w *wsConn) Close() {
	w.once.Do(func() {
		close(w.done)
		w.conn.Close()
	})
}

func (w *wsConn) setRoom(room string) {
	w.mu.Lock()
	w.room = room
	w.mu.Unlock()
}

func (w *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.Close()
	}()
	for {
		select {
		case <-w.done:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSController upgrades /ws and speaks the control half of the realtime
// protocol: register-user plus the advisory room events. Dispatch targets
// the per-user registration, never the room.
type WSController struct {
	Registry *services.Registry
	Tokens   *services.TokenService
}

func (wsc *WSController) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	userID, err := wsc.Tokens.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	wc := newWSConn(conn)
	log.Printf("ws: user %d connected (%s)", userID, wc.id)
	go wc.writePump()
	wsc.readPump(wc, userID)
}

func (wsc *WSController) readPump(wc *wsConn, userID uint) {
	defer func() {
		if uid, ok := wsc.Registry.Unregister(wc); ok {
			log.Printf("ws: user %d unregistered (%s)", uid, wc.id)
		}
		wc.Close()
	}()

	wc.conn.SetReadLimit(readLimit)
	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := models.DecodeEnvelope(raw)
		if err != nil {
			log.Printf("ws: dropping frame from %s: %v", wc.id, err)
			continue
		}

		switch env.Event {
		case models.EventRegisterUser:
			var p models.RegisterUserPayload
			if err := models.DecodePayload(env, &p); err != nil {
				log.Printf("ws: dropping frame from %s: %v", wc.id, err)
				continue
			}
			// The claimed id must match the token identity.
			if p.UserID != userID {
				log.Printf("ws: %s claimed user %d but authenticated as %d", wc.id, p.UserID, userID)
				continue
			}
			if prev := wsc.Registry.Register(userID, wc); prev != nil && prev != wc {
				prev.Close()
			}
			wc.ack(env.Ack)
		case models.EventJoinRoom:
			var p models.RoomPayload
			if err := models.DecodePayload(env, &p); err != nil {
				log.Printf("ws: dropping frame from %s: %v", wc.id, err)
				continue
			}
			wc.setRoom(p.Room)
			wc.ack(env.Ack)
		case models.EventLeaveRoom:
			wc.setRoom("")
			wc.ack(env.Ack)
		default:
			log.Printf("ws: dropping unknown event %q from %s", env.Event, wc.id)
		}
	}
}

func (w *wsConn) ack(ackID uint64) {
	if ackID == 0 {
		return
	}
	frame, err := models.EncodeEvent(models.EventAck, ackID, nil)
	if err != nil {
		return
	}
	w.Send(frame)
}
