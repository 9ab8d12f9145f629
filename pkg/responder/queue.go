// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import "github.com/Thermoquad/rdmresponder/pkg/rdm"

// QueueCapacity is the number of messages the queue holds
const QueueCapacity = 10

// QueuedMessage is a response waiting to be collected through QUEUED_MESSAGE
type QueuedMessage struct {
	CommandClass uint8
	PID          uint16
	ParamData    []byte
}

// emptyQueuedMessage answers QUEUED_MESSAGE when nothing is pending
var emptyQueuedMessage = QueuedMessage{
	CommandClass: rdm.GetCommandResponse,
	PID:          rdm.PIDStatusMessages,
}

// MessageQueue is a bounded stack of queued messages. The most recently
// added message is collected first.
type MessageQueue struct {
	queue [QueueCapacity]QueuedMessage
	count int

	last    QueuedMessage
	hasLast bool
}

// Add copies m onto the stack. It returns false when the stack is full or
// the parameter data is too long; the message is dropped.
func (q *MessageQueue) Add(m QueuedMessage) bool {
	if q.count == QueueCapacity || len(m.ParamData) > rdm.MaxParamDataLength {
		return false
	}
	m.ParamData = append([]byte(nil), m.ParamData...)
	q.queue[q.count] = m
	q.count++
	return true
}

// Count returns the number of pending messages
func (q *MessageQueue) Count() uint8 {
	return uint8(q.count)
}

// Next returns the message to send for a QUEUED_MESSAGE request.
//
// STATUS_GET_LAST_MESSAGE peeks the top of the stack without popping.
// Once the stack is drained it repeats the message collected last. Other
// status types pop the top of the stack. An empty STATUS_MESSAGES reply
// is returned when there is nothing to send.
func (q *MessageQueue) Next(statusType uint8) QueuedMessage {
	if statusType == rdm.StatusGetLastMessage {
		switch {
		case q.count > 0:
			return q.queue[q.count-1]
		case q.hasLast:
			return q.last
		default:
			return emptyQueuedMessage
		}
	}

	if q.count == 0 {
		return emptyQueuedMessage
	}

	q.count--
	m := q.queue[q.count]
	q.queue[q.count] = QueuedMessage{}
	q.last = m
	q.hasLast = true
	return m
}
