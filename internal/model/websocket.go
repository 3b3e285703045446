package model

// WSEventType tags every frame sent over the session socket
type WSEventType string

const (
	WSJobProgress WSEventType = "job.progress"
	WSJobComplete WSEventType = "job.complete"
	WSJobFailed   WSEventType = "job.failed"
	WSToast       WSEventType = "toast"
	WSShareIntent WSEventType = "intent.share"
	WSCopyIntent  WSEventType = "intent.copy"
	WSPing        WSEventType = "ping"
	WSPong        WSEventType = "pong"
)

// WSEvent is the single frame shape. Exactly one payload field is set,
// matching Type; ping and pong carry none.
type WSEvent struct {
	Type   WSEventType `json:"type"`
	Job    *WSJobEvent `json:"job,omitempty"`
	Toast  *UiMessage  `json:"toast,omitempty"`
	Intent *WSIntent   `json:"intent,omitempty"`
}

type WSJobEvent struct {
	ID       string      `json:"id"`
	Status   JobStatus   `json:"status"`
	Progress int         `json:"progress"`
	Step     string      `json:"step,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Error    *WSError    `json:"error,omitempty"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSIntent asks the client to open its share sheet or write its clipboard
type WSIntent struct {
	Text    string `json:"text"`
	Title   string `json:"title,omitempty"`
	Subject string `json:"subject,omitempty"`
}
