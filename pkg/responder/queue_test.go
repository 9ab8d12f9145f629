// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"bytes"
	"testing"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

func queued(pid uint16, data ...byte) QueuedMessage {
	return QueuedMessage{CommandClass: rdm.GetCommandResponse, PID: pid, ParamData: data}
}

func assertEmpty(t *testing.T, m QueuedMessage) {
	t.Helper()
	if m.PID != rdm.PIDStatusMessages || len(m.ParamData) != 0 {
		t.Errorf("got PID %s with %d bytes, want empty STATUS_MESSAGES", rdm.FormatPID(m.PID), len(m.ParamData))
	}
}

func TestQueue_EmptyYieldsStatusMessages(t *testing.T) {
	var q MessageQueue
	assertEmpty(t, q.Next(rdm.StatusAdvisory))
	assertEmpty(t, q.Next(rdm.StatusGetLastMessage))
	if q.Count() != 0 {
		t.Errorf("Count() = %d", q.Count())
	}
}

func TestQueue_PopsMostRecentFirst(t *testing.T) {
	var q MessageQueue
	m1 := queued(rdm.PIDDMXStartAddress, 0x00, 0x01)
	m2 := queued(rdm.PIDDMXPersonality, 0x02, 0x02)

	q.Add(m1)
	q.Add(m2)
	if q.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", q.Count())
	}

	if got := q.Next(rdm.StatusAdvisory); got.PID != m2.PID {
		t.Errorf("first Next = %s, want m2", rdm.FormatPID(got.PID))
	}
	if got := q.Next(rdm.StatusAdvisory); got.PID != m1.PID {
		t.Errorf("second Next = %s, want m1", rdm.FormatPID(got.PID))
	}
	assertEmpty(t, q.Next(rdm.StatusAdvisory))
}

func TestQueue_GetLastMessageDoesNotDrain(t *testing.T) {
	var q MessageQueue
	m1 := queued(rdm.PIDDMXStartAddress, 0x00, 0x10)
	q.Add(m1)

	for i := 0; i < 3; i++ {
		got := q.Next(rdm.StatusGetLastMessage)
		if got.PID != m1.PID || !bytes.Equal(got.ParamData, m1.ParamData) {
			t.Fatalf("call %d: got %+v, want m1", i, got)
		}
	}
	if q.Count() != 1 {
		t.Errorf("Count() = %d after GET_LAST_MESSAGE, want 1", q.Count())
	}
}

func TestQueue_GetLastMessage(t *testing.T) {
	tests := []struct {
		name string
		ops  func(q *MessageQueue)
		want uint16
		left uint8
	}{
		{
			name: "peeks the top after a pop",
			ops: func(q *MessageQueue) {
				q.Add(queued(rdm.PIDDMXStartAddress))
				q.Add(queued(rdm.PIDDMXPersonality))
				q.Next(rdm.StatusAdvisory)
			},
			want: rdm.PIDDMXStartAddress,
			left: 1,
		},
		{
			name: "peeks a message added after a pop",
			ops: func(q *MessageQueue) {
				q.Add(queued(rdm.PIDDMXStartAddress))
				q.Next(rdm.StatusAdvisory)
				q.Add(queued(rdm.PIDDMXPersonality))
			},
			want: rdm.PIDDMXPersonality,
			left: 1,
		},
		{
			name: "repeats the collected message once drained",
			ops: func(q *MessageQueue) {
				q.Add(queued(rdm.PIDDMXPersonality))
				q.Next(rdm.StatusAdvisory)
			},
			want: rdm.PIDDMXPersonality,
			left: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q MessageQueue
			tt.ops(&q)
			if got := q.Next(rdm.StatusGetLastMessage); got.PID != tt.want {
				t.Errorf("GET_LAST_MESSAGE = %s, want %s", rdm.FormatPID(got.PID), rdm.FormatPID(tt.want))
			}
			if q.Count() != tt.left {
				t.Errorf("Count() = %d, want %d", q.Count(), tt.left)
			}
		})
	}
}

func TestQueue_AddFailsWhenFull(t *testing.T) {
	var q MessageQueue
	for i := 0; i < QueueCapacity; i++ {
		if !q.Add(queued(rdm.PIDDeviceLabel)) {
			t.Fatalf("Add %d failed", i)
		}
	}
	if q.Add(queued(rdm.PIDDeviceLabel)) {
		t.Error("Add beyond capacity succeeded")
	}
	if q.Count() != QueueCapacity {
		t.Errorf("Count() = %d", q.Count())
	}
}

func TestQueue_AddCopiesParamData(t *testing.T) {
	var q MessageQueue
	data := []byte{1, 2}
	q.Add(queued(rdm.PIDDeviceLabel, data...))
	data[0] = 9

	if got := q.Next(rdm.StatusAdvisory); got.ParamData[0] != 1 {
		t.Error("queued message aliases the caller's buffer")
	}
}
