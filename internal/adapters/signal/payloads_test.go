package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		valid   bool
	}{
		{"authenticate with token", authenticatePayload{Type: EvtAuthenticate, Token: "t"}, true},
		{"authenticate without token", authenticatePayload{Type: EvtAuthenticate}, false},
		{"join with conversation", conversationPayload{Type: EvtJoinConversation, ConversationID: "c"}, true},
		{"join without conversation", conversationPayload{Type: EvtJoinConversation}, false},
		{"mark-read without message", markReadPayload{Type: EvtMarkRead}, false},
		{"call audio", callInitiatePayload{Type: EvtCallInitiate, CalleeID: "u", Kind: "audio"}, true},
		{"call video", callInitiatePayload{Type: EvtCallInitiate, CalleeID: "u", Kind: "video"}, true},
		{"call bad kind", callInitiatePayload{Type: EvtCallInitiate, CalleeID: "u", Kind: "screen"}, false},
		{"call without callee", callInitiatePayload{Type: EvtCallInitiate, Kind: "audio"}, false},
		{"who-is-online empty list", whoIsOnlinePayload{Type: EvtWhoIsOnline, UserIDs: []string{}}, false},
		{"who-is-online with ids", whoIsOnlinePayload{Type: EvtWhoIsOnline, UserIDs: []string{"a"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.payload)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
