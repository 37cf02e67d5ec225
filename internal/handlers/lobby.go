// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AndresSweeneyRios/uno/internal/auth"
	"github.com/AndresSweeneyRios/uno/internal/game"
)

type createLobbyRequest struct {
	Name     string `json:"name"`
	Passcode string `json:"passcode"`
}

// CreateLobbyHandler registers a new named lobby over HTTP. A non-empty
// passcode makes the lobby private; subscribers must present it. The creator
// still claims their seat by subscribing over the websocket.
func (gs *GameServer) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if !lobbyNamePattern.MatchString(req.Name) {
		http.Error(w, "Invalid lobby name", http.StatusBadRequest)
		return
	}

	passcodeHash := ""
	if req.Passcode != "" {
		hash, err := auth.HashPasscode(req.Passcode)
		if err != nil {
			logrus.Errorf("Failed to hash passcode for lobby %q: %v", req.Name, err)
			http.Error(w, "Failed to create lobby", http.StatusInternalServerError)
			return
		}
		passcodeHash = hash
	}

	lobby, err := gs.LobbyStore.CreateLobby(req.Name, passcodeHash)
	if err != nil {
		if errors.Is(err, game.ErrNameTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create lobby", http.StatusInternalServerError)
		return
	}

	logrus.Infof("Lobby %q created (private=%v).", req.Name, passcodeHash != "")
	writeJSON(w, http.StatusCreated, game.LobbySummary{
		Name:        lobby.Name,
		State:       game.StateAwaitingPlayers,
		PlayerCount: 0,
		MaxPlayers:  game.MaxPlayers,
		HasPasscode: passcodeHash != "",
	})
}

// ListLobbiesHandler returns a summary of every lobby.
func (gs *GameServer) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, gs.LobbyStore.ListLobbies())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
