package scanclient

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"net/http"
	"strings"
	"time"
)

// IssueRequest sends one request relative to the client's base url, and
// unmarshals a successful response body into result (when non-nil).  It never
// retries.  The raw body is returned in all cases where one was received.
func IssueRequest(ctx context.Context, restyClient *resty.Client, verb string, path string, body interface{}, result interface{}) ([]byte, error) {
	return issue(ctx, restyClient, restyClient.R(), verb, path, body, result)
}

func issue(ctx context.Context, restyClient *resty.Client, request *resty.Request, verb string, path string, body interface{}, result interface{}) (respBody []byte, err error) {
	route := routeOf(path)
	ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("%s %s", verb, route),
		attribute.String("http.method", verb),
		attribute.String("http.target", path))
	start := time.Now()
	defer func() {
		telemetry.RecordRequestDuration(verb, route, time.Since(start))
		telemetry.RecordEvent("api request", fmt.Sprintf("%s %s", verb, route), err)
		telemetry.EndSpan(span, err)
	}()

	request = request.SetContext(ctx)
	if body != nil {
		if logrus.IsLevelEnabled(logrus.TraceLevel) {
			reqBody, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return nil, errors.Wrapf(err, "unable to marshal json")
			}
			logrus.Tracef("request body: %s", string(reqBody))
		}
		request = request.SetBody(body)
	}

	urlPath := fmt.Sprintf("%s%s", restyClient.BaseURL, path)
	logrus.Debugf("issuing %s to %s", verb, urlPath)

	resp, err := request.Execute(verb, path)
	if err != nil {
		return nil, errors.WithStack(&NetworkError{Verb: verb, Path: path, Err: err})
	}

	respBody, statusCode := resp.Body(), resp.StatusCode()
	logrus.Debugf("response code %d from %s to %s", statusCode, verb, urlPath)
	if result != nil || !resp.IsSuccess() {
		logrus.Tracef("response body: %s", string(respBody))
	} else {
		logrus.Tracef("response body: %d bytes", len(respBody))
	}

	if !resp.IsSuccess() {
		return respBody, errors.WithStack(NewAPIError(statusCode, respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return respBody, errors.WithStack(&ParseError{What: fmt.Sprintf("response to %s %s", verb, path), Err: err})
		}
	}
	return respBody, nil
}

// NewAPIError builds the error for a non-2xx response, preferring the
// `{"error": "..."}` message from the body.
func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}
	payload := &errorResponse{}
	if err := json.Unmarshal(body, payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))
	}
	return apiErr
}

// routeOf keeps metric and span names bounded: "/jobs/abc" -> "/jobs".
func routeOf(path string) string {
	pieces := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(pieces) >= 2 && pieces[0] == "scan" && pieces[1] == "batch" {
		return "/scan/batch"
	}
	return "/" + pieces[0]
}
