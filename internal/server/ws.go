package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/contrib/websocket"

	"crashgame/internal/game"
)

// gameWebSocketHandler streams engine events to the client and accepts
// place_bet / cashout commands over the same connection.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")

	log.Printf("[WS] New connection from user: %s", userID)

	client := s.hub.RegisterClient(conn, userID)
	client.SendInitialState(s.engine.CurrentState(), s.engine.RecentResults())

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg map[string]interface{}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}

		msgType, ok := clientMsg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bet":
			amount, _ := strconv.ParseFloat(fmt.Sprintf("%v", clientMsg["amount"]), 64)

			resp, balance, err := s.placeBet(context.Background(), game.BetRequest{
				UserID: userID,
				Amount: amount,
			})
			if err != nil {
				resp = game.BetResponse{Success: false, Message: "Insufficient balance"}
			}

			respJSON, _ := json.Marshal(map[string]interface{}{
				"type":      "bet_result",
				"success":   resp.Success,
				"message":   resp.Message,
				"round_id":  resp.RoundID,
				"bet_index": resp.BetIndex,
				"balance":   balance,
			})
			conn.WriteMessage(websocket.TextMessage, respJSON)

		case "cashout":
			betIndex := 0
			if v, ok := clientMsg["bet_index"].(float64); ok {
				betIndex = int(v)
			}

			resp, balance, err := s.cashout(context.Background(), game.CashoutRequest{
				UserID:   userID,
				BetIndex: betIndex,
			})
			if err != nil {
				resp = game.CashoutResponse{Success: false, Message: "Failed to credit payout"}
			}

			respJSON, _ := json.Marshal(map[string]interface{}{
				"type":       "cashout_result",
				"success":    resp.Success,
				"message":    resp.Message,
				"round_id":   resp.RoundID,
				"bet_index":  resp.BetIndex,
				"multiplier": resp.Multiplier,
				"payout":     resp.Payout,
				"balance":    balance,
			})
			conn.WriteMessage(websocket.TextMessage, respJSON)

		case "ping":
			pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pongJSON)
		}
	}
}
