package creds

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	credfile "github.com/saneproj/sane-net/internal/auth"
	"github.com/spf13/cobra"
)

var (
	testResource string
	testUsername string
	testPassword string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a challenge/response check against the credentials file",
	Long: `Simulate the AUTHORIZE round trip saned runs on a client (spec C3):
issue an MD5 challenge for --resource, compute the response a client
holding --password would send, and report whether it verifies against the
stored entry.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVar(&testResource, "resource", "", "resource to authorize against (required)")
	testCmd.Flags().StringVar(&testUsername, "username", "", "username (required)")
	testCmd.Flags().StringVar(&testPassword, "password", "", "password to test (required)")
	_ = testCmd.MarkFlagRequired("resource")
	_ = testCmd.MarkFlagRequired("username")
	_ = testCmd.MarkFlagRequired("password")
}

func runTest(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")

	authz, err := credfile.NewAuthorizer(file)
	if err != nil {
		return fmt.Errorf("failed to load credentials file: %w", err)
	}
	if !authz.RequiresAuth(testResource) {
		fmt.Printf("resource %q has no credentials file entries: access would be granted unconditionally\n", testResource)
		return nil
	}

	challenge := authz.NewChallenge(testResource)
	response := clientResponse(challenge, testPassword)

	status := authz.Authorize(context.Background(), testResource, challenge, testUsername, response)
	if !status.Ok() {
		return fmt.Errorf("FAILED: %q would be denied access to resource %q (%s)", testUsername, testResource, status)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("OK: %q would authenticate for resource %q", testUsername, testResource))
	return nil
}

// clientResponse reproduces the "$MD5$" digest response form a real SANE
// client computes for challenge: "$MD5$" + hex(md5(salt + password)),
// matching the salt extraction and stored-password comparison
// internal/auth's md5Provider.Verify performs server-side.
func clientResponse(challenge, password string) string {
	const prefix = "$MD5$"
	salt := challenge
	if idx := strings.Index(challenge, prefix); idx >= 0 {
		salt = challenge[idx+len(prefix):]
	}
	sum := md5.Sum([]byte(salt + password))
	return prefix + hex.EncodeToString(sum[:])
}
