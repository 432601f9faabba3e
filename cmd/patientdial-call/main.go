// Command patientdial-call places one outbound call through the telephony
// provider and points its callbacks at a running patientdial server. It is
// the operator-side trigger; the server does the rest.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func main() {
	var (
		to      = flag.String("to", "", "E.164 number to call (required)")
		from    = flag.String("from", os.Getenv("TWILIO_PHONE_NUMBER"), "E.164 number to call from (defaults to TWILIO_PHONE_NUMBER)")
		baseURL = flag.String("base-url", os.Getenv("PATIENTDIAL_PUBLIC_BASE_URL"), "public base URL of the patientdial server (defaults to PATIENTDIAL_PUBLIC_BASE_URL)")
	)
	flag.Parse()

	accountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	if err := run(*to, *from, *baseURL, accountSID, authToken); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(to, from, baseURL, accountSID, authToken string) error {
	switch {
	case to == "":
		return fmt.Errorf("-to is required")
	case from == "":
		return fmt.Errorf("-from or TWILIO_PHONE_NUMBER is required")
	case baseURL == "":
		return fmt.Errorf("-base-url or PATIENTDIAL_PUBLIC_BASE_URL is required")
	case accountSID == "" || authToken == "":
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	params := &twilioapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(baseURL + "/voice")
	params.SetMethod("POST")
	params.SetRecord(true)
	params.SetRecordingStatusCallback(baseURL + "/call-recording")
	params.SetRecordingStatusCallbackMethod("POST")
	params.SetStatusCallback(baseURL + "/call-status")
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"completed", "busy", "failed", "no-answer"})

	resp, err := client.Api.CreateCall(params)
	if err != nil {
		return fmt.Errorf("creating call: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	fmt.Printf("call created: sid=%s to=%s from=%s\n", sid, to, from)
	return nil
}
