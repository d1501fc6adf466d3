package config

// DefaultConfigContent 默认配置文件内容，包含详细说明
const DefaultConfigContent = `# adshield 配置文件

# 广告拦截配置
adblock:
  # 启动时是否启用拦截，默认 true
  enable: true
  # 额外的规则列表文件（每行一条规则，# 或 ! 开头为注释）
  # 支持以下格式：
  #   domain:doubleclick.net        - URL 子串匹配
  #   keyword:banner                - class/id 关键字
  #   [class*="sponsor"]            - 选择器写法，等价于 keyword:sponsor
  #   [data-ad]                     - 带该属性的节点直接拦截
  #   frame:pubads                  - 仅对内嵌框架生效的关键字
  #   ||ads.example.com^$script     - AdGuard 网络规则
  rule_files: []

# 规则集，省略的列表使用内置默认值
rules:
  # URL 中包含这些子串即拦截（不区分大小写）
  domain_patterns:
    - "doubleclick.net"
    - "googleads"
    - "googlesyndication"
    - "facebook.com/ads"
    - "adsystem"
    - "adservice"
    - "adserver"
    - "googletagservices"
    - "gstatic.com/cv/js"
    - "pagead2.googlesyndication"
    - "example-ads.com"
    - "youtube.com/api/stats/ads"
    - "youtube.com/pagead/"
  # class 或 id 中包含这些子串的节点会被移除
  attribute_keywords:
    - "ad"
    - "banner"
    - "sponsor"
    - "ads"
    - "ad-container"
    - "ad-banner"
    - "ad-wrapper"
    - "sponsored"
    - "promo-banner"
    - "ytp-ad-module"
    - "ytp-ad-player-overlay"
    - "video-ads"
  # 只要存在这些属性就会被移除
  data_markers:
    - "data-ad"
    - "data-adclient"
  # 内嵌框架额外检查的关键字（比 domain_patterns 更宽松）
  frame_keywords:
    - "ad"
    - "ads"
    - "banner"
    - "sponsor"
    - "pubads"
  # 背景图片中包含该标记即视为广告图
  ad_image_token: "ad"
  # 声明式网络规则（AdGuard 语法），按资源类型生效
  network_rules:
    - "||doubleclick.net^$script,image,xmlhttprequest"
    - "||googleads.$script,image,xmlhttprequest"
    - "||googlesyndication.com^$script,image,xmlhttprequest"
    - "||adsystem.$script,image,xmlhttprequest"

# 控制接口配置
webui:
  # 是否启用 HTTP 控制接口，默认 true
  enabled: true
  # 监听端口，默认 8080
  listen_port: 8080

# 系统配置
system:
  # 日志级别：debug, info, warn, error
  log_level: "info"
`
