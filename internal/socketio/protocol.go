package socketio

import (
	"encoding/json"
	"errors"
	"strings"
)

type enginePacketType byte

const (
	engineOpen    enginePacketType = '0'
	engineClose   enginePacketType = '1'
	enginePing    enginePacketType = '2'
	enginePong    enginePacketType = '3'
	engineMessage enginePacketType = '4'
)

type socketPacketType byte

const (
	socketConnect socketPacketType = '0'
	socketEvent   socketPacketType = '2'
)

func parseOptionalNamespace(s string) (namespace string, rest string) {
	if !strings.HasPrefix(s, "/") {
		return "/", s
	}
	comma := strings.IndexByte(s, ',')
	if comma == -1 {
		return "/", s
	}
	return s[:comma], s[comma+1:]
}

// Event packets may carry a numeric ack id before the JSON array. The chat
// protocol is fire-and-forget, so the id is parsed and discarded.
func skipOptionalIDPrefix(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		i++
	}
	return s[i:]
}

type socketEventPacket struct {
	Namespace string
	Event     string
	Args      []json.RawMessage
}

func parseSocketEventPacket(payload string) (socketEventPacket, error) {
	if payload == "" {
		return socketEventPacket{}, errors.New("empty payload")
	}
	if payload[0] != byte(socketEvent) {
		return socketEventPacket{}, errors.New("not an event packet")
	}

	ns, rest := parseOptionalNamespace(payload[1:])
	rest = skipOptionalIDPrefix(rest)
	if !strings.HasPrefix(rest, "[") {
		return socketEventPacket{}, errors.New("invalid event payload")
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return socketEventPacket{}, err
	}
	if len(arr) == 0 {
		return socketEventPacket{}, errors.New("missing event name")
	}
	var eventName string
	if err := json.Unmarshal(arr[0], &eventName); err != nil {
		return socketEventPacket{}, errors.New("invalid event name")
	}

	return socketEventPacket{Namespace: ns, Event: eventName, Args: arr[1:]}, nil
}

func buildSocketEventPacket(namespace string, event string, args ...any) (string, error) {
	arr := make([]any, 0, 1+len(args))
	arr = append(arr, event)
	arr = append(arr, args...)
	data, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketEvent))
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
	b.Write(data)
	return b.String(), nil
}

func buildSocketConnectPacket(namespace string, sid string) (string, error) {
	data, err := json.Marshal(map[string]string{"sid": sid})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketConnect))
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
	b.Write(data)
	return b.String(), nil
}

func buildEngineOpenPacket(sid string, maxPayload int64) string {
	open := map[string]any{
		"sid":          sid,
		"upgrades":     []string{},
		"pingInterval": 25000,
		"pingTimeout":  20000,
		"maxPayload":   maxPayload,
	}
	data, _ := json.Marshal(open)
	return string(engineOpen) + string(data)
}
