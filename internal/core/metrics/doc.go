// Package metrics 提供会话级 Prometheus 指标
//
// 每个会话拥有独立的 Registry，多个会话在同一进程内互不干扰；
// cmd/coedit 通过 promhttp 暴露该 Registry。
//
// 所有记录方法对 nil *Metrics 安全，组件可在未启用指标时直接调用。
//
//	m := metrics.New()
//	m.SignalingMessage("offer", metrics.ResultHandled)
//	http.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
package metrics
