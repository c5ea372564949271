package internal

import (
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// tui model struct for all the components and modes of the radar client
type TUIModel struct {
	textInput       textinput.Model
	serverURL       string
	email           string
	password        string
	token           string
	userID          int64
	username        string
	latitude        float64
	longitude       float64
	active          bool
	nearby          []NearbyUser
	notices         []string
	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error
	mode            appMode
}

type appMode int

const (
	modeEmailPrompt appMode = iota
	modePasswordPrompt
	modeRadar
)

func NewTUIModel(serverURL, email, password string, latitude, longitude float64) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Focus()

	model := &TUIModel{
		textInput: input,
		serverURL: serverURL,
		email:     email,
		password:  password,
		latitude:  latitude,
		longitude: longitude,
		nearby:    make([]NearbyUser, 0, 16),
	}
	switch {
	case email == "":
		model.mode = modeEmailPrompt
		model.textInput.Placeholder = "Enter account email…"
		model.textInput.Prompt = "email> "
	case password == "":
		model.mode = modePasswordPrompt
		model.preparePasswordInput()
	default:
		model.mode = modeRadar
		model.textInput.Blur()
	}
	return model
}

func (model *TUIModel) preparePasswordInput() {
	model.textInput.SetValue("")
	model.textInput.Placeholder = "Enter password…"
	model.textInput.Prompt = "password> "
	model.textInput.EchoMode = textinput.EchoPassword
	model.textInput.Focus()
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeRadar {
		return model.loginCmd()
	}
	return textinput.Blink
}

// RunClient launches the bubbletea program with the radar model.
func RunClient(serverURL, email, password string, latitude, longitude float64) error {
	program := tea.NewProgram(NewTUIModel(serverURL, email, password, latitude, longitude))
	_, err := program.Run()
	return err
}
