package network

// 消息ID，请求与响应共用同一个ID
const (
	MsgTypeHeartbeat    = 1
	MsgTypeCreateRoom   = 101
	MsgTypeJoinRoom     = 102
	MsgTypeLeaveRoom    = 103
	MsgTypeStartGame    = 201
	MsgTypeSubmitAnswer = 202
	MsgTypeAdvanceRound = 203
	MsgTypeGetStatus    = 301
	MsgTypeRoomEvent    = 302 // 服务端推送的房间事件
	MsgTypeServerNotice = 303 // 服务端通知，如停服
	MsgTypeError        = 500
)

// MaxPayload is the largest body that fits the 2-byte length field.
const MaxPayload = 1<<16 - 1
