// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

import "github.com/u-root/ssif-bmc/pkg/metric"

var (
	requestsTotal = metric.Counter(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "requests_total",
		Help:      "IPMI requests fully assembled from the host.",
	})
	responsesTotal = metric.Counter(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "responses_total",
		Help:      "IPMI responses fully read out by the host.",
	})
	droppedRequestsTotal = metric.Counter(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "dropped_requests_total",
		Help:      "Requests overwritten before the consumer drained them.",
	})
	protocolErrorsTotal = metric.Counter(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "protocol_errors_total",
		Help:      "Unexpected SMBus command codes during response framing.",
	})
	chunksTotal = metric.Counter(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "response_chunks_total",
		Help:      "Multi-part response chunks handed to the host.",
	})
)
