package e2e

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cucumber/godog"
)

var submitCounter atomic.Int64

// uniqueValue makes identity values distinct across scenarios so
// repeated acceptances do not collide on identity uniqueness.
func uniqueValue(v string) string {
	n := submitCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d", v, time.Now().UnixNano(), n)
}

func submitBody(email, userName string) map[string]any {
	return map[string]any{
		"attributes": []map[string]any{
			{"name": "email", "group": "/", "values": []string{email}},
		},
		"identities": []map[string]any{
			{"type": "userName", "value": userName},
		},
		"groupSelections":   []bool{false},
		"credentialSecrets": []string{"e2e-secret-1"},
		"agreements":        []bool{true},
	}
}

// RegisterSteps binds the feature's step phrases to the shared context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return c, nil
	})

	ctx.Step(`^the idhub server is reachable$`, func() error {
		if err := tc.GET("/healthz"); err != nil {
			return err
		}
		return tc.AssertStatus(200)
	})

	ctx.Step(`^I submit a registration request to form "([^"]*)" with:$`, func(form string, table *godog.Table) error {
		fields := map[string]string{}
		for _, row := range table.Rows {
			if len(row.Cells) != 2 {
				return fmt.Errorf("expected two-column table row, got %d cells", len(row.Cells))
			}
			fields[row.Cells[0].Value] = row.Cells[1].Value
		}
		body := submitBody(fields["email"], uniqueValue(fields["userName"]))
		if err := tc.POST("/registration/"+form+"/requests", body); err != nil {
			return err
		}
		if id, err := tc.ResponseField("requestId"); err == nil {
			tc.requestID, _ = id.(string)
		}
		return nil
	})

	ctx.Step(`^I have submitted a registration request to form "([^"]*)"$`, func(form string) error {
		body := submitBody("e2e@example.org", uniqueValue("e2e-user"))
		if err := tc.POST("/registration/"+form+"/requests", body); err != nil {
			return err
		}
		if err := tc.AssertStatus(201); err != nil {
			return err
		}
		id, err := tc.ResponseField("requestId")
		if err != nil {
			return err
		}
		tc.requestID, _ = id.(string)
		if tc.requestID == "" {
			return fmt.Errorf("submit did not return a request id")
		}
		return nil
	})

	ctx.Step(`^I fetch the request$`, func() error {
		return tc.GET("/requests/" + tc.requestID)
	})

	ctx.Step(`^I accept the request without credentials$`, func() error {
		return tc.POST("/requests/"+tc.requestID+"/accept", map[string]any{})
	})

	ctx.Step(`^I accept the request as admin$`, func() error {
		return tc.POSTAsAdmin("/requests/"+tc.requestID+"/accept", map[string]any{})
	})

	ctx.Step(`^I reject the request as admin$`, func() error {
		return tc.POSTAsAdmin("/requests/"+tc.requestID+"/reject", map[string]any{
			"comments": []map[string]any{
				{"text": "rejected by e2e", "public": true},
			},
		})
	})

	ctx.Step(`^the response status should be (\d+)$`, func(code string) error {
		want, err := strconv.Atoi(code)
		if err != nil {
			return err
		}
		return tc.AssertStatus(want)
	})

	ctx.Step(`^the response should contain "([^"]*)"$`, func(field string) error {
		_, err := tc.ResponseField(field)
		return err
	})

	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, func(field, want string) error {
		v, err := tc.ResponseField(field)
		if err != nil {
			return err
		}
		got := fmt.Sprintf("%v", v)
		if got != want {
			return fmt.Errorf("expected %s=%q, got %q", field, want, got)
		}
		return nil
	})
}
