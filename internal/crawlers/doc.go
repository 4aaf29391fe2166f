// Package crawlers 实现单站点结构爬取
//
// # 概述
//
// crawlers包从种子URL出发做广度优先遍历,只访问同一域名(含子域名)下的http(s)页面,
// 遵守robots.txt和页面预算,把每个成功抓取的页面转换为models.PageRecord写入models.SiteGraph。
//
// # 核心组件
//
// ## Engine (爬取引擎)
//
// 单个调度协程独占URLQueue、SiteGraph和URL状态表;worker只负责抓取和解析,
// 结果通过channel交回调度协程。每个worker持有自己的rate.Limiter控制请求间隔。
//
//	engine := NewEngine(config, NewStaticFetcher(config, headers), NewRobotsGate(robotsConfig, nil, headers))
//	result, err := engine.Run(ctx, "https://example.com")
//
// ## Fetcher (页面抓取器)
//
//   - StaticFetcher: 基于Colly的HTTP抓取,ExtractHTML用goquery解析标题、链接和表单
//   - BrowserFetcher: 基于go-rod的浏览器抓取,一次JS求值读取渲染后的DOM
//
// 非2xx响应返回*StatusError,由引擎记录为visited-failed。
//
// ## TabPool / ResourceMonitor
//
// 浏览器模式下的标签页池。上限取worker数、max_tabs_limit和ResourceMonitor
// 根据可用内存及CPU负载算出的值中的最小者。
//
// ## RobotsGate
//
// 每个主机的robots.txt只获取一次并缓存。获取失败时默认拒绝(DefaultDenyOnError)。
//
// # URL规范化
//
// Canonicalize去掉fragment、查询串、默认端口和末尾斜杠,主机名转小写。
// 两个URL规范化结果相同即视为同一页面。
package crawlers
