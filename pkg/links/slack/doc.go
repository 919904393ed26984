// Package slack handles the parts of Slack's [Events API] and
// [interaction payloads] over HTTP webhooks that go beyond signature
// verification and event extraction, such as the [URL verification] handshake.
//
// [Events API]: https://docs.slack.dev/apis/events-api
// [interaction payloads]: https://docs.slack.dev/interactivity/handling-user-interaction
// [URL verification]: https://docs.slack.dev/reference/events/url_verification
package slack
