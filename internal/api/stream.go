package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API is deployed behind the institutional gateway; origin policy
	// is enforced there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// handleClassifyStream evaluates signals one at a time over a websocket.
// Long cohort runs use this instead of the batch endpoint to get results
// incrementally: the client sends one ProcedureSignal per message and
// receives one ClassificationResult per message, in order.
func (s *Server) handleClassifyStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Results and pings are written from different goroutines; the
	// connection allows one concurrent writer.
	var writeMu sync.Mutex

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var signal domain.ProcedureSignal
			if err := conn.ReadJSON(&signal); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.WithError(err).Debug("Websocket closed unexpectedly")
				}
				return
			}

			result := s.engine.Classify(c.Request.Context(), &signal)

			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(result)
			writeMu.Unlock()
			if err != nil {
				s.log.WithError(err).Debug("Websocket write failed")
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
