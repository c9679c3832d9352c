package eventsvc

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The wire format is small ad-hoc JSON documents. sjson/gjson keep the codec
// schema-free: there is no generated code and no struct churn when an
// operation grows a field.

// encodeRequest builds a request payload with an optional text argument.
func encodeRequest(text string) []byte {
	if text == "" {
		return []byte(`{}`)
	}
	out, _ := sjson.Set(`{}`, "text", text)
	return []byte(out)
}

// encodeTaskQuery builds a task.status request.
func encodeTaskQuery(id string) []byte {
	out, _ := sjson.Set(`{}`, "id", id)
	return []byte(out)
}

// encodeOK builds an accepted reply, with an optional task id and done flag.
func encodeOK(taskID string, done, haveDone bool) []byte {
	out := `{"ok":true}`
	if taskID != "" {
		out, _ = sjson.Set(out, "task_id", taskID)
	}
	if haveDone {
		out, _ = sjson.Set(out, "done", done)
	}
	return []byte(out)
}

// encodeErr builds a rejected reply.
func encodeErr(err error) []byte {
	out, _ := sjson.Set(`{"ok":false}`, "error", err.Error())
	return []byte(out)
}

// encodeFlagState builds a coord.state reply.
func encodeFlagState(exit, halt bool) []byte {
	out, _ := sjson.Set(`{"ok":true}`, "exit", exit)
	out, _ = sjson.Set(out, "halt", halt)
	return []byte(out)
}

// decodeReply checks the ok flag and surfaces the remote error text.
func decodeReply(data []byte) error {
	if !gjson.GetBytes(data, "ok").Bool() {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			return errors.New("eventsvc: call rejected")
		}
		return fmt.Errorf("eventsvc: %s", msg)
	}
	return nil
}

// replyText extracts a string field from a reply.
func replyText(data []byte, field string) string {
	return gjson.GetBytes(data, field).String()
}

// replyBool extracts a boolean field from a reply.
func replyBool(data []byte, field string) bool {
	return gjson.GetBytes(data, field).Bool()
}

// requestText extracts the text argument from a request payload.
func requestText(data []byte) string {
	return gjson.GetBytes(data, "text").String()
}

// requestID extracts the id argument from a request payload.
func requestID(data []byte) string {
	return gjson.GetBytes(data, "id").String()
}
