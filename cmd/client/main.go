// QUIC chat TUI client.
//
// Screens
// -------
//   stateLogin   – login / register form
//   stateChats   – chat list with unread badges
//   stateChat    – one chat: paged messages + input
//   stateFriends – friends and pending requests
//
// Concurrency
// -----------
//   Every request opens a fresh bidirectional stream, writes one frame, and
//   reads one frame back; requests run inside tea.Cmd functions so the
//   event loop never blocks. A single goroutine reads Refresh markers from
//   the server's unidirectional push stream and forwards them to the
//   refresh channel; the event loop answers each one by re-fetching the
//   current view.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/quic-go/quic-go"

	"quic-chat-system/internal/protocol"
)

const (
	defaultAddr = "127.0.0.1:8080"
	pageSize    = 25
	reqTimeout  = 10 * time.Second
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	cyan   = lipgloss.Color("86")
	green  = lipgloss.Color("82")
	red    = lipgloss.Color("196")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 2)

	labelStyle        = lipgloss.NewStyle().Foreground(gray).Width(10)
	focusedLabelStyle = lipgloss.NewStyle().Foreground(cyan).Width(10)
	hintStyle         = lipgloss.NewStyle().Foreground(gray).Italic(true)
	successStyle      = lipgloss.NewStyle().Foreground(green)
	errorStyle        = lipgloss.NewStyle().Foreground(red)
	selectedStyle     = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	unreadStyle       = lipgloss.NewStyle().Bold(true).Foreground(orange)
	myNameStyle       = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle         = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// client performs one request per bidirectional stream and holds the
// bearer token between requests.
type client struct {
	conn *quic.Conn
	jwt  string
}

func dial(addr string) (*client, error) {
	tlsConf := &tls.Config{
		// The server presents a self-signed certificate; the transport
		// provides link security only. Documented limitation.
		InsecureSkipVerify: true,
		NextProtos:         []string{"quic-chat"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), reqTimeout)
	defer cancel()

	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{})
	if err != nil {
		return nil, err
	}
	return &client{conn: conn}, nil
}

// do frames one request on a fresh stream and reads the single response.
func (c *client) do(cmdType protocol.CommandType, payload any) (protocol.Response, error) {
	var resp protocol.Response

	cmd, err := protocol.NewCommand(cmdType, payload)
	if err != nil {
		return resp, err
	}

	req := protocol.Request{Command: cmd}
	if c.jwt != "" {
		token := c.jwt
		req.JWT = &token
	}

	ctx, cancel := context.WithTimeout(context.Background(), reqTimeout)
	defer cancel()

	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return resp, err
	}
	defer stream.Close()

	if err := protocol.WriteFrame(stream, req); err != nil {
		return resp, err
	}
	if err := protocol.ReadFrame(stream, &resp); err != nil {
		return resp, err
	}

	if resp.JWT != nil && *resp.JWT != "" {
		c.jwt = *resp.JWT
	}
	return resp, nil
}

// listenPush forwards one signal per Refresh marker until the push stream
// dies with the connection.
func (c *client) listenPush(refresh chan<- struct{}) {
	ctx := context.Background()
	stream, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		close(refresh)
		return
	}
	for {
		var marker protocol.Refresh
		if err := protocol.ReadFrame(stream, &marker); err != nil {
			close(refresh)
			return
		}
		refresh <- struct{}{}
	}
}

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

type refreshMsg struct{}
type disconnectedMsg struct{}
type errMsg struct{ err error }

type authOkMsg struct{ username string }
type chatsMsg struct{ chats []protocol.ChatEntry }
type messagesMsg struct {
	chatID   int64
	messages []protocol.ChatMessageEntry
	pages    uint64
	page     uint64
}
type friendsMsg struct {
	friends  []protocol.UserInfo
	requests protocol.FriendRequestsData
}
type statusMsg struct {
	text string
	ok   bool
}

func waitForRefresh(refresh <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, open := <-refresh; !open {
			return disconnectedMsg{}
		}
		return refreshMsg{}
	}
}

// ---------------------------------------------------------------------------
// Application state
// ---------------------------------------------------------------------------

type appState int

const (
	stateLogin appState = iota
	stateChats
	stateChat
	stateFriends
)

type model struct {
	cli     *client
	refresh chan struct{}

	state appState
	me    string

	// Login / register
	loginIsReg  bool
	loginFocus  int
	loginFields [2]textinput.Model // [0]=username [1]=password
	status      string
	statusOK    bool

	// Chat list
	chats    []protocol.ChatEntry
	chatSel  int
	newChat  textinput.Model // comma-separated member ids for a fresh chat
	chatting bool            // newChat field focused

	// Active chat
	activeChat  int64
	activeName  string
	messages    []protocol.ChatMessageEntry
	page        uint64
	pageCount   uint64
	ready       bool
	viewport    viewport.Model
	chatInput   textinput.Model

	// Friends
	friends   []protocol.UserInfo
	requests  protocol.FriendRequestsData
	friendSel int
	addFriend textinput.Model
	adding    bool

	width, height int
}

func newModel(cli *client, refresh chan struct{}) model {
	uf := textinput.New()
	uf.Placeholder = "username"
	uf.Focus()
	uf.CharLimit = 64
	uf.Width = 32

	pf := textinput.New()
	pf.Placeholder = "password"
	pf.EchoMode = textinput.EchoPassword
	pf.EchoCharacter = '•'
	pf.CharLimit = 64
	pf.Width = 32

	ci := textinput.New()
	ci.Placeholder = "Type a message…"
	ci.CharLimit = 4000

	af := textinput.New()
	af.Placeholder = "friend's username"
	af.CharLimit = 64
	af.Width = 32

	nc := textinput.New()
	nc.Placeholder = "member ids, comma separated"
	nc.CharLimit = 128
	nc.Width = 32

	return model{
		cli:         cli,
		refresh:     refresh,
		state:       stateLogin,
		loginFields: [2]textinput.Model{uf, pf},
		chatInput:   ci,
		addFriend:   af,
		newChat:     nc,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForRefresh(m.refresh))
}

// ---------------------------------------------------------------------------
// Commands (one request per tea.Cmd)
// ---------------------------------------------------------------------------

func (m model) authenticate(register bool, username, password string) tea.Cmd {
	cli := m.cli
	return func() tea.Msg {
		cmdType := protocol.CmdLogin
		if register {
			cmdType = protocol.CmdRegister
		}
		resp, err := cli.do(cmdType, protocol.AuthPayload{Username: username, Password: password})
		if err != nil {
			return errMsg{err}
		}
		if !resp.Success {
			return statusMsg{text: respMessage(resp), ok: false}
		}
		return authOkMsg{username: username}
	}
}

func (m model) fetchChats() tea.Cmd {
	cli := m.cli
	return func() tea.Msg {
		resp, err := cli.do(protocol.CmdGetChats, protocol.GetChatsPayload{Page: 0, PageSize: 100})
		if err != nil {
			return errMsg{err}
		}
		if !resp.Success {
			return statusMsg{text: respMessage(resp), ok: false}
		}
		var data protocol.ChatsData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return errMsg{err}
		}
		return chatsMsg{chats: data.Chats}
	}
}

func (m model) fetchMessages(chatID int64, page uint64) tea.Cmd {
	cli := m.cli
	return func() tea.Msg {
		pagesResp, err := cli.do(protocol.CmdGetChatPages,
			protocol.GetChatPagesPayload{ChatID: chatID, PageSize: pageSize})
		if err != nil {
			return errMsg{err}
		}
		if !pagesResp.Success {
			return statusMsg{text: respMessage(pagesResp), ok: false}
		}
		var pages protocol.CountData
		if err := json.Unmarshal(pagesResp.Data, &pages); err != nil {
			return errMsg{err}
		}

		resp, err := cli.do(protocol.CmdGetChatMessages,
			protocol.GetChatMessagesPayload{ChatID: chatID, Page: page, PageSize: pageSize})
		if err != nil {
			return errMsg{err}
		}
		if !resp.Success {
			return statusMsg{text: respMessage(resp), ok: false}
		}
		var data protocol.ChatMessagesData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return errMsg{err}
		}

		// Viewing the newest page marks the chat read.
		if page == 0 {
			cli.do(protocol.CmdMarkMessagesRead, protocol.MarkMessagesReadPayload{ChatID: chatID})
		}

		return messagesMsg{chatID: chatID, messages: data.Messages, pages: pages.Count, page: page}
	}
}

func (m model) sendMessage(chatID int64, content string) tea.Cmd {
	cli := m.cli
	fetch := m.fetchMessages(chatID, 0)
	return func() tea.Msg {
		resp, err := cli.do(protocol.CmdSendMessage,
			protocol.SendMessagePayload{ChatID: chatID, Content: content})
		if err != nil {
			return errMsg{err}
		}
		if !resp.Success {
			return statusMsg{text: respMessage(resp), ok: false}
		}
		return fetch()
	}
}

func (m model) fetchFriends() tea.Cmd {
	cli := m.cli
	return func() tea.Msg {
		friendsResp, err := cli.do(protocol.CmdGetFriends, nil)
		if err != nil {
			return errMsg{err}
		}
		if !friendsResp.Success {
			return statusMsg{text: respMessage(friendsResp), ok: false}
		}
		var friends protocol.FriendsData
		if err := json.Unmarshal(friendsResp.Data, &friends); err != nil {
			return errMsg{err}
		}

		reqResp, err := cli.do(protocol.CmdGetFriendRequests, nil)
		if err != nil {
			return errMsg{err}
		}
		if !reqResp.Success {
			return statusMsg{text: respMessage(reqResp), ok: false}
		}
		var requests protocol.FriendRequestsData
		if err := json.Unmarshal(reqResp.Data, &requests); err != nil {
			return errMsg{err}
		}

		return friendsMsg{friends: friends.Users, requests: requests}
	}
}

// simpleCmd runs a mutation and reports its outcome, then triggers follow
// to reload the current view.
func (m model) simpleCmd(cmdType protocol.CommandType, payload any, follow tea.Cmd) tea.Cmd {
	cli := m.cli
	return func() tea.Msg {
		resp, err := cli.do(cmdType, payload)
		if err != nil {
			return errMsg{err}
		}
		if !resp.Success {
			return statusMsg{text: respMessage(resp), ok: false}
		}
		if follow != nil {
			return follow()
		}
		return statusMsg{text: respMessage(resp), ok: true}
	}
}

func respMessage(resp protocol.Response) string {
	if resp.Message != nil {
		return *resp.Message
	}
	if resp.Success {
		return "ok"
	}
	return "request failed"
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.chatInput.Width = msg.Width - 4
		return m, nil

	case refreshMsg:
		// The server says our view is stale; re-fetch whatever is active.
		cmd := waitForRefresh(m.refresh)
		switch m.state {
		case stateChats:
			return m, tea.Batch(cmd, m.fetchChats())
		case stateChat:
			return m, tea.Batch(cmd, m.fetchMessages(m.activeChat, m.page))
		case stateFriends:
			return m, tea.Batch(cmd, m.fetchFriends())
		}
		return m, cmd

	case disconnectedMsg:
		m.status = "disconnected from server"
		return m, tea.Quit

	case errMsg:
		m.status = msg.err.Error()
		m.statusOK = false
		return m, nil

	case statusMsg:
		m.status = msg.text
		m.statusOK = msg.ok
		return m, nil

	case authOkMsg:
		m.me = msg.username
		m.state = stateChats
		m.status = ""
		return m, m.fetchChats()

	case chatsMsg:
		m.chats = msg.chats
		if m.chatSel >= len(m.chats) {
			m.chatSel = 0
		}
		return m, nil

	case messagesMsg:
		m.state = stateChat
		m.activeChat = msg.chatID
		m.messages = msg.messages
		m.page = msg.page
		m.pageCount = msg.pages
		m.renderMessages()
		return m, nil

	case friendsMsg:
		m.friends = msg.friends
		m.requests = msg.requests
		if m.friendSel >= len(m.requests.Incoming) {
			m.friendSel = 0
		}
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateLogin:
			return m.handleLoginKey(msg)
		case stateChats:
			return m.handleChatsKey(msg)
		case stateChat:
			return m.handleChatKey(msg)
		case stateFriends:
			return m.handleFriendsKey(msg)
		}
	}
	return m, nil
}

func (m model) vpHeight() int {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// ---------------------------------------------------------------------------
// Key handlers
// ---------------------------------------------------------------------------

func (m model) handleLoginKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyTab, tea.KeyShiftTab:
		m.loginFocus = (m.loginFocus + 1) % 2
		for i := range m.loginFields {
			if i == m.loginFocus {
				m.loginFields[i].Focus()
			} else {
				m.loginFields[i].Blur()
			}
		}
		return m, textinput.Blink

	case tea.KeyCtrlR:
		m.loginIsReg = !m.loginIsReg
		m.status = ""
		return m, nil

	case tea.KeyEnter:
		user := strings.TrimSpace(m.loginFields[0].Value())
		pass := m.loginFields[1].Value()
		if user == "" || pass == "" {
			m.status = "username and password are required"
			return m, nil
		}
		m.status = "Authenticating…"
		return m, m.authenticate(m.loginIsReg, user, pass)
	}

	var cmd tea.Cmd
	m.loginFields[m.loginFocus], cmd = m.loginFields[m.loginFocus].Update(msg)
	return m, cmd
}

func (m model) handleChatsKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.chatting {
		switch msg.Type {
		case tea.KeyEsc:
			m.chatting = false
			m.newChat.Blur()
			return m, nil
		case tea.KeyEnter:
			ids := parseIDs(m.newChat.Value())
			m.newChat.Reset()
			m.chatting = false
			m.newChat.Blur()
			if len(ids) == 0 {
				m.status = "enter at least one member id"
				return m, nil
			}
			return m, m.simpleCmd(protocol.CmdCreateChat,
				protocol.CreateChatPayload{IsGroup: len(ids) > 1, MemberIDs: ids},
				m.fetchChats())
		}
		var cmd tea.Cmd
		m.newChat, cmd = m.newChat.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		m.cli.do(protocol.CmdLogout, protocol.LogoutPayload{Username: m.me})
		return m, tea.Quit

	case tea.KeyUp:
		if m.chatSel > 0 {
			m.chatSel--
		}
		return m, nil

	case tea.KeyDown:
		if m.chatSel < len(m.chats)-1 {
			m.chatSel++
		}
		return m, nil

	case tea.KeyEnter:
		if len(m.chats) == 0 {
			return m, nil
		}
		chat := m.chats[m.chatSel]
		m.activeName = chat.ChatName
		m.chatInput.Focus()
		return m, m.fetchMessages(chat.ID, 0)
	}

	switch msg.String() {
	case "f":
		m.state = stateFriends
		return m, m.fetchFriends()
	case "n":
		m.chatting = true
		m.newChat.Focus()
		return m, textinput.Blink
	case "r":
		return m, m.fetchChats()
	}
	return m, nil
}

func (m model) handleChatKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		m.cli.do(protocol.CmdLogout, protocol.LogoutPayload{Username: m.me})
		return m, tea.Quit

	case tea.KeyEsc:
		m.state = stateChats
		m.chatInput.Blur()
		return m, m.fetchChats()

	case tea.KeyEnter:
		content := strings.TrimSpace(m.chatInput.Value())
		if content != "" {
			m.chatInput.Reset()
			return m, m.sendMessage(m.activeChat, content)
		}
		return m, nil

	case tea.KeyPgUp:
		// Older window. Pages run newest (0) to oldest (pageCount-1).
		if m.page+1 < m.pageCount {
			return m, m.fetchMessages(m.activeChat, m.page+1)
		}
		return m, nil

	case tea.KeyPgDown:
		if m.page > 0 {
			return m, m.fetchMessages(m.activeChat, m.page-1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) handleFriendsKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.adding {
		switch msg.Type {
		case tea.KeyEsc:
			m.adding = false
			m.addFriend.Blur()
			return m, nil
		case tea.KeyEnter:
			username := strings.TrimSpace(m.addFriend.Value())
			m.addFriend.Reset()
			m.adding = false
			m.addFriend.Blur()
			if username == "" {
				return m, nil
			}
			return m, m.simpleCmd(protocol.CmdSendFriendRequest,
				protocol.SendFriendRequestPayload{ReceiverUsername: username},
				m.fetchFriends())
		}
		var cmd tea.Cmd
		m.addFriend, cmd = m.addFriend.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		m.cli.do(protocol.CmdLogout, protocol.LogoutPayload{Username: m.me})
		return m, tea.Quit

	case tea.KeyEsc:
		m.state = stateChats
		return m, m.fetchChats()

	case tea.KeyUp:
		if m.friendSel > 0 {
			m.friendSel--
		}
		return m, nil

	case tea.KeyDown:
		if m.friendSel < len(m.requests.Incoming)-1 {
			m.friendSel++
		}
		return m, nil
	}

	switch msg.String() {
	case "a":
		if m.friendSel < len(m.requests.Incoming) {
			sender := m.requests.Incoming[m.friendSel]
			return m, m.simpleCmd(protocol.CmdAcceptFriendRequest,
				protocol.AcceptFriendRequestPayload{SenderID: sender.ID},
				m.fetchFriends())
		}
	case "d":
		if m.friendSel < len(m.requests.Incoming) {
			sender := m.requests.Incoming[m.friendSel]
			return m, m.simpleCmd(protocol.CmdDeclineFriendRequest,
				protocol.DeclineFriendRequestPayload{SenderID: sender.ID},
				m.fetchFriends())
		}
	case "n":
		m.adding = true
		m.addFriend.Focus()
		return m, textinput.Blink
	case "r":
		return m, m.fetchFriends()
	}
	return m, nil
}

func parseIDs(input string) []int64 {
	ids := []int64{}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func (m *model) renderMessages() {
	lines := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		name := peerStyle.Render(msg.Username)
		if msg.Username == m.me {
			name = myNameStyle.Render(msg.Username)
		}
		lines = append(lines, name+": "+msg.Content)
	}
	if m.ready {
		m.viewport.SetContent(strings.Join(lines, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m model) View() string {
	switch m.state {
	case stateLogin:
		return m.viewLogin()
	case stateChats:
		return m.viewChats()
	case stateChat:
		return m.viewChat()
	case stateFriends:
		return m.viewFriends()
	}
	return ""
}

func (m model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusOK {
		return successStyle.Render(m.status)
	}
	return errorStyle.Render(m.status)
}

func (m model) viewLogin() string {
	mode := "Login"
	if m.loginIsReg {
		mode = "Register"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("QUIC Chat — "+mode) + "\n\n")
	labels := []string{"username", "password"}
	for i, field := range m.loginFields {
		style := labelStyle
		if i == m.loginFocus {
			style = focusedLabelStyle
		}
		b.WriteString("  " + style.Render(labels[i]) + field.View() + "\n")
	}
	b.WriteString("\n  " + hintStyle.Render("enter: submit · ctrl+r: toggle login/register · ctrl+c: quit"))
	b.WriteString("\n\n  " + m.statusLine())
	return b.String()
}

func (m model) viewChats() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Chats — "+m.me) + "\n\n")

	if len(m.chats) == 0 {
		b.WriteString("  " + hintStyle.Render("no chats yet") + "\n")
	}
	for i, chat := range m.chats {
		line := chat.ChatName
		if chat.UnreadCount > 0 {
			line += " " + unreadStyle.Render(fmt.Sprintf("(%d unread)", chat.UnreadCount))
		}
		if i == m.chatSel {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.chatting {
		b.WriteString("\n  new chat " + m.newChat.View() + "\n")
	}

	b.WriteString("\n  " + hintStyle.Render("enter: open · n: new chat · f: friends · r: refresh · ctrl+q: quit"))
	b.WriteString("\n  " + m.statusLine())
	return b.String()
}

func (m model) viewChat() string {
	header := headerStyle.Render(m.activeName)
	if m.pageCount > 1 {
		header += " " + hintStyle.Render(fmt.Sprintf("page %d/%d (pgup for older)", m.page+1, m.pageCount))
	}

	body := ""
	if m.ready {
		body = m.viewport.View()
	}

	return header + "\n" + body + "\n" +
		m.chatInput.View() + "\n" +
		hintStyle.Render("esc: back · enter: send") + " " + m.statusLine()
}

func (m model) viewFriends() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Friends — "+m.me) + "\n\n")

	b.WriteString("  " + titleStyle.Render("Friends") + "\n")
	if len(m.friends) == 0 {
		b.WriteString("  " + hintStyle.Render("none yet") + "\n")
	}
	for _, f := range m.friends {
		b.WriteString(fmt.Sprintf("  %s (id %d)\n", f.Username, f.ID))
	}

	b.WriteString("\n  " + titleStyle.Render("Incoming requests") + "\n")
	if len(m.requests.Incoming) == 0 {
		b.WriteString("  " + hintStyle.Render("none") + "\n")
	}
	for i, r := range m.requests.Incoming {
		line := fmt.Sprintf("%s (id %d)", r.Username, r.ID)
		if i == m.friendSel {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n  " + titleStyle.Render("Outgoing requests") + "\n")
	if len(m.requests.Outgoing) == 0 {
		b.WriteString("  " + hintStyle.Render("none") + "\n")
	}
	for _, r := range m.requests.Outgoing {
		b.WriteString(fmt.Sprintf("  %s (id %d)\n", r.Username, r.ID))
	}

	b.WriteString("\n  " + hintStyle.Render("a: accept · d: decline · n: add friend · esc: back"))
	if m.adding {
		b.WriteString("\n  add " + m.addFriend.View())
	}
	b.WriteString("\n  " + m.statusLine())
	return b.String()
}

// ---------------------------------------------------------------------------
// main
// ---------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", envOr("SERVER_ADDR", defaultAddr), "server address")
	flag.Parse()

	cli, err := dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	refresh := make(chan struct{}, 8)
	go cli.listenPush(refresh)

	p := tea.NewProgram(newModel(cli, refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
