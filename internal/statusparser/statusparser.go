// Package statusparser validates and normalizes extension status,
// substatus, and heartbeat JSON written by extensions (§4.5).
package statusparser

import (
	"encoding/json"
	"os"
	"time"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	svcerrors "github.com/kubev2v/guest-extension-agent/pkg/errors"
)

// unresponsiveAfter is how stale a heartbeat file's mtime must be before
// the handler is reported Unresponsive (§3, P6).
const unresponsiveAfter = 10 * time.Minute

type statusEnvelope struct {
	Status statusBody `json:"status"`
}

type statusBody struct {
	Status                   string            `json:"status"`
	Code                     int               `json:"code"`
	FormattedMessage         *formattedMessage `json:"formattedMessage"`
	Operation                string            `json:"operation"`
	ConfigurationAppliedTime string            `json:"configurationAppliedTime"`
	Substatus                []*substatusEntry `json:"substatus"`
}

type formattedMessage struct {
	Lang    string `json:"lang"`
	Message string `json:"message"`
}

type substatusEntry struct {
	Name             string            `json:"name"`
	Status           string            `json:"status"`
	Code             int               `json:"code"`
	FormattedMessage *formattedMessage `json:"formattedMessage"`
}

// ParseStatusFile reads and validates status/<seq>.status (§4.5, §4.6).
//
// Failure modes, per spec:
//   - file missing            -> {warning}, not an error (I3: "incomplete")
//   - I/O error                -> {error, code -1}
//   - malformed JSON           -> {error, PluginSettingsStatusInvalid}
//   - schema violation         -> {error, PluginSettingsStatusInvalid}
func ParseStatusFile(path string, seqNo int) models.ExtensionStatus {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ExtensionStatus{SeqNo: seqNo, Status: models.ExtStatusWarning}
		}
		return models.ExtensionStatus{SeqNo: seqNo, Status: models.ExtStatusError, Code: int(svcerrors.CodeDefault)}
	}
	return Parse(data, seqNo)
}

// Parse validates a raw status JSON document already read into memory.
func Parse(data []byte, seqNo int) models.ExtensionStatus {
	var envelopes []statusEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return invalid(seqNo)
	}
	if len(envelopes) != 1 {
		return invalid(seqNo)
	}
	body := envelopes[0].Status

	statusValue := models.ExtensionStatusValue(body.Status)
	switch statusValue {
	case models.ExtStatusTransitioning, models.ExtStatusError, models.ExtStatusSuccess, models.ExtStatusWarning:
	default:
		return invalid(seqNo)
	}

	if body.FormattedMessage != nil {
		if body.FormattedMessage.Lang == "" || body.FormattedMessage.Message == "" {
			return invalid(seqNo)
		}
	}

	result := models.ExtensionStatus{
		SeqNo:                    seqNo,
		Status:                   statusValue,
		Code:                     body.Code,
		Operation:                body.Operation,
		ConfigurationAppliedTime: body.ConfigurationAppliedTime,
	}
	if body.FormattedMessage != nil {
		result.Message = body.FormattedMessage.Message
	}
	for _, sub := range body.Substatus {
		if sub == nil {
			continue // null entries are dropped, not errored (P5)
		}
		entry := models.Substatus{Name: sub.Name, Status: sub.Status, Code: sub.Code}
		if sub.FormattedMessage != nil {
			entry.FormattedMessage = &models.FormattedMessage{Lang: sub.FormattedMessage.Lang, Message: sub.FormattedMessage.Message}
		}
		result.Substatus = append(result.Substatus, entry)
	}
	return result
}

func invalid(seqNo int) models.ExtensionStatus {
	return models.ExtensionStatus{
		SeqNo:  seqNo,
		Status: models.ExtStatusError,
		Code:   int(svcerrors.CodePluginSettingsStatusInvalid),
	}
}

// ParseHeartbeat reads and validates heartbeat.log, reporting whether the
// handler is unresponsive based on file mtime (§3, §6, P6).
func ParseHeartbeat(path string) (hb models.Heartbeat, unresponsive bool, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return models.Heartbeat{}, false, statErr
	}
	if time.Since(info.ModTime()) > unresponsiveAfter {
		return models.Heartbeat{}, true, nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return models.Heartbeat{}, false, readErr
	}

	var entries []struct {
		Heartbeat models.Heartbeat `json:"heartbeat"`
	}
	if jsonErr := json.Unmarshal(data, &entries); jsonErr != nil || len(entries) == 0 {
		return models.Heartbeat{}, false, jsonErr
	}
	return entries[0].Heartbeat, false, nil
}
