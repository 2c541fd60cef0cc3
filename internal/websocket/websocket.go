package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/tracking"
)

// Константы для типов сообщений WebSocket
const (
	JourneyLocationUpdateType = "JOURNEY_LOCATION_UPDATE"
	JourneyMilestoneType      = "JOURNEY_MILESTONE"
	JourneyCompletedType      = "JOURNEY_COMPLETED"
)

// WebSocketMessage представляет формат сообщения WebSocket
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketManager управляет подписками на обновления рейсов: панель диспетчера
// и страница отслеживания клиента подписываются на конкретный рейс и получают
// обновления позиции и контрольные события в реальном времени
type WebSocketManager struct {
	clientsByJourney map[uint]map[*websocket.Conn]bool
	register         chan *WebSocketClient
	unregister       chan *WebSocketClient
	mutex            sync.RWMutex
}

// WebSocketClient представляет клиентское соединение, подписанное на рейс
type WebSocketClient struct {
	conn      *websocket.Conn
	journeyID uint
	clientID  string
}

// Глобальный менеджер WebSocket
var wsManager = NewWebSocketManager()

// NewWebSocketManager создает новый менеджер WebSocket
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clientsByJourney: make(map[uint]map[*websocket.Conn]bool),
		register:         make(chan *WebSocketClient),
		unregister:       make(chan *WebSocketClient),
	}
}

// Start запускает обработку подписок WebSocket
func (manager *WebSocketManager) Start() {
	log.Printf("Запуск WebSocket Manager")
	go func() {
		for {
			select {
			case client := <-manager.register:
				manager.mutex.Lock()
				if _, ok := manager.clientsByJourney[client.journeyID]; !ok {
					manager.clientsByJourney[client.journeyID] = make(map[*websocket.Conn]bool)
				}
				manager.clientsByJourney[client.journeyID][client.conn] = true
				manager.mutex.Unlock()
				log.Printf("Клиент %s подписан на рейс %d", client.clientID, client.journeyID)

			case client := <-manager.unregister:
				manager.mutex.Lock()
				if conns, ok := manager.clientsByJourney[client.journeyID]; ok {
					if _, exists := conns[client.conn]; exists {
						delete(conns, client.conn)
						client.conn.Close()
					}
					if len(conns) == 0 {
						delete(manager.clientsByJourney, client.journeyID)
					}
				}
				manager.mutex.Unlock()
				log.Printf("Клиент %s отписан от рейса %d", client.clientID, client.journeyID)
			}
		}
	}()
}

// BroadcastToJourney отправляет сообщение всем подписчикам рейса
func (manager *WebSocketManager) BroadcastToJourney(journeyID uint, message *WebSocketMessage) {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	connections, exists := manager.clientsByJourney[journeyID]
	if !exists || len(connections) == 0 {
		return
	}

	jsonMessage, err := json.Marshal(message)
	if err != nil {
		log.Printf("BroadcastToJourney: Ошибка при кодировании сообщения: %v", err)
		return
	}

	// Отправляем сообщение по каждому соединению; ошибка отправки отключает клиента
	for conn := range connections {
		go func(c *websocket.Conn) {
			if err := c.WriteMessage(websocket.TextMessage, jsonMessage); err != nil {
				log.Printf("BroadcastToJourney: Ошибка при отправке подписчику рейса %d: %v", journeyID, err)
				manager.unregister <- &WebSocketClient{
					conn:      c,
					journeyID: journeyID,
				}
			}
		}(conn)
	}
}

// Handler обрабатывает подключения WebSocket: параметр journey_id задает подписку
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Upgrade") != "websocket" {
			c.String(http.StatusBadRequest, "Требуется WebSocket соединение")
			return
		}

		journeyID, err := strconv.ParseUint(c.Query("journey_id"), 10, 32)
		if err != nil || journeyID == 0 {
			c.String(http.StatusBadRequest, "Не указан journey_id")
			return
		}

		clientID := c.Query("client_id")
		if clientID == "" {
			clientID = fmt.Sprintf("anon_%s", uuid.New().String())
		}

		wsUpgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем подключения с любых источников
			},
		}

		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения до WebSocket: %v", err)
			c.String(http.StatusInternalServerError, "Не удалось установить WebSocket соединение")
			return
		}

		client := &WebSocketClient{
			conn:      conn,
			journeyID: uint(journeyID),
			clientID:  clientID,
		}

		wsManager.register <- client

		go handleMessages(client)
	}
}

// handleMessages обрабатывает входящие сообщения от подписчика (ping/pong)
func handleMessages(client *WebSocketClient) {
	defer func() {
		wsManager.unregister <- client
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var data map[string]interface{}
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}

		if msgType, ok := data["type"].(string); ok && msgType == "ping" {
			pongMsg := map[string]interface{}{
				"type": "pong",
				"time": time.Now().Unix(),
			}
			pongJSON, _ := json.Marshal(pongMsg)
			if err := client.conn.WriteMessage(websocket.TextMessage, pongJSON); err != nil {
				log.Printf("Ошибка при отправке pong клиенту %s: %v", client.clientID, err)
			}
		}
	}
}

// Sink адаптирует менеджер WebSocket к контракту приемника обновлений движка
type Sink struct{}

// NewSink создает приемник, транслирующий обновления подписчикам WebSocket
func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Name() string {
	return "websocket"
}

// Publish рассылает обновление подписчикам рейса. Контрольное событие и
// завершение рейса уходят отдельными сообщениями со своими типами.
func (s *Sink) Publish(ctx context.Context, update tracking.Update) error {
	wsManager.BroadcastToJourney(update.JourneyID, &WebSocketMessage{
		Type:    JourneyLocationUpdateType,
		Payload: update,
	})

	if update.Milestone != nil {
		wsManager.BroadcastToJourney(update.JourneyID, &WebSocketMessage{
			Type:    JourneyMilestoneType,
			Payload: update.Milestone,
		})
	}

	if update.Final {
		wsManager.BroadcastToJourney(update.JourneyID, &WebSocketMessage{
			Type:    JourneyCompletedType,
			Payload: map[string]interface{}{"journey_id": update.JourneyID},
		})
	}

	return nil
}

// GetManager возвращает глобальный экземпляр менеджера WebSocket
func GetManager() *WebSocketManager {
	return wsManager
}

// StartManager запускает менеджер WebSocket
func StartManager() {
	wsManager.Start()
}
