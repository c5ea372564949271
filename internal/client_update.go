package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// one arrow press moves roughly eleven meters of latitude
const nudgeDegrees = 0.0001

type (
	loggedInMsg struct {
		token string
		user  userDTO
	}
	loginFailedMsg   struct{ err error }
	connectedMsg     struct{}
	nearbyMsg        []NearbyUser
	noticeMsg        string
	errorMsg         error
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// Any mode should respect Ctrl+C or Esc so the user can bail out quickly.
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			model.disconnect()
			return model, tea.Quit
		}
		switch model.mode {
		case modeEmailPrompt:
			if typedMessage.Type == tea.KeyEnter {
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					return model, nil
				}
				model.email = trimmed
				model.mode = modePasswordPrompt
				model.preparePasswordInput()
				return model, textinput.Blink
			}
			var cmd tea.Cmd
			model.textInput, cmd = model.textInput.Update(typedMessage)
			return model, cmd
		case modePasswordPrompt:
			if typedMessage.Type == tea.KeyEnter {
				value := model.textInput.Value()
				if value == "" {
					return model, nil
				}
				model.password = value
				model.textInput.SetValue("")
				model.textInput.Blur()
				model.mode = modeRadar
				model.addNotice("Signing in…")
				return model, model.loginCmd()
			}
			var cmd tea.Cmd
			model.textInput, cmd = model.textInput.Update(typedMessage)
			return model, cmd
		case modeRadar:
			return model.handleRadarKey(typedMessage)
		}

	case loggedInMsg:
		model.token = typedMessage.token
		model.userID = typedMessage.user.ID
		model.username = typedMessage.user.Username
		model.addNotice(fmt.Sprintf("Signed in as %s.", model.username))
		return model, model.connectCmd()

	case loginFailedMsg:
		if typedMessage.err == errUnauthorized {
			model.addNotice("Login failed: wrong email or password.")
			model.mode = modePasswordPrompt
			model.preparePasswordInput()
			return model, textinput.Blink
		}
		model.connectionError = typedMessage.err
		return model, tea.Quit

	case connectedMsg:
		model.isConnected = true
		model.connectionError = nil
		model.addNotice("Connected. Press a to go visible.")
		// seed the server with our starting position
		return model, tea.Batch(model.sendEventCmd(EventUpdate, model.updatePayload()), model.readOnceCmd())

	case nearbyMsg:
		model.nearby = typedMessage
		return model, model.readOnceCmd()

	case noticeMsg:
		model.addNotice(string(typedMessage))
		return model, model.readOnceCmd()

	case errorMsg:
		model.isConnected = false
		model.connectionError = typedMessage
		if model.mode == modeRadar && model.token != "" {
			return model, model.scheduleReconnect()
		}
		return model, tea.Quit

	case connectFailedMsg:
		model.isConnected = false
		model.connectionError = typedMessage.err
		if model.mode == modeRadar {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case reconnectMsg:
		if model.mode == modeRadar && !model.isConnected {
			model.active = false
			return model, model.connectCmd()
		}
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) handleRadarKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		model.disconnect()
		return model, tea.Quit
	case "a":
		if !model.isConnected {
			return model, nil
		}
		if model.active {
			model.active = false
			model.nearby = model.nearby[:0]
			return model, model.sendEventCmd(EventLeave, LeavePayload{UserID: model.userID})
		}
		model.active = true
		return model, tea.Batch(
			model.sendEventCmd(EventJoin, JoinPayload{UserID: model.userID}),
			model.sendEventCmd(EventUpdate, model.updatePayload()),
		)
	case "up":
		return model, model.moveBy(nudgeDegrees, 0)
	case "down":
		return model, model.moveBy(-nudgeDegrees, 0)
	case "left":
		return model, model.moveBy(0, -nudgeDegrees)
	case "right":
		return model, model.moveBy(0, nudgeDegrees)
	}
	return model, nil
}

func (model *TUIModel) moveBy(deltaLat, deltaLon float64) tea.Cmd {
	model.latitude = clamp(model.latitude+deltaLat, -90, 90)
	model.longitude = clamp(model.longitude+deltaLon, -180, 180)
	if !model.isConnected {
		return nil
	}
	return model.sendEventCmd(EventUpdate, model.updatePayload())
}

func (model *TUIModel) updatePayload() UpdatePayload {
	return UpdatePayload{
		UserID:    model.userID,
		Latitude:  model.latitude,
		Longitude: model.longitude,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, text)
	if len(model.notices) > 5 {
		model.notices = model.notices[len(model.notices)-5:]
	}
}

func (model *TUIModel) disconnect() {
	if model.websocketConn == nil {
		return
	}
	model.writeMutex.Lock()
	_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	model.writeMutex.Unlock()
	_ = model.websocketConn.Close()
	model.websocketConn = nil
	model.isConnected = false
}

func (model *TUIModel) loginCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := apiLogin(model.serverURL, model.email, model.password)
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return loggedInMsg{token: resp.Token, user: resp.User}
	}
}

func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		socketURL, err := buildSocketURL(model.serverURL, model.token)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		conn, _, err := websocket.DefaultDialer.Dial(socketURL, http.Header{})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.websocketConn = conn
		return connectedMsg{}
	}
}

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	// schedule a future poke that nudges Update to try the connection again
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

func (model *TUIModel) readOnceCmd() tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		messageType, payload, err := model.websocketConn.ReadMessage()
		if err != nil {
			return errorMsg(err)
		}
		if messageType != websocket.TextMessage {
			return nil
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return noticeMsg(string(payload))
		}
		switch envelope.Event {
		case EventNearbyUsers:
			var nearby []NearbyUser
			if err := json.Unmarshal(envelope.Data, &nearby); err != nil {
				return noticeMsg("Received an unreadable nearby set.")
			}
			return nearbyMsg(nearby)
		case EventStatus:
			var status StatusPayload
			if err := json.Unmarshal(envelope.Data, &status); err == nil && status.Message != "" {
				return noticeMsg(status.Message)
			}
			return noticeMsg("Connected.")
		case EventError:
			var serverError ErrorPayload
			if err := json.Unmarshal(envelope.Data, &serverError); err == nil && serverError.Message != "" {
				return noticeMsg("Server: " + serverError.Message)
			}
			return noticeMsg("Server reported an error.")
		}
		return noticeMsg(fmt.Sprintf("Unhandled event %q.", envelope.Event))
	}
}

func (model *TUIModel) sendEventCmd(event string, payload any) tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		encoded, err := EncodeEvent(event, payload)
		if err != nil {
			return errorMsg(err)
		}
		model.writeMutex.Lock()
		err = model.websocketConn.WriteMessage(websocket.TextMessage, encoded)
		model.writeMutex.Unlock()
		if err != nil {
			return errorMsg(err)
		}
		return nil
	}
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
