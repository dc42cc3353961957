package iis

// Command names, used in logs, metrics and test fakes.
const (
	CommandDiscover = "iis.discover"
	CommandRemove   = "iis.remove"
	CommandCreate   = "iis.create"
	CommandAttach   = "iis.attach"
)

// moduleMissingMarker is printed by discoverScript when WebAdministration
// is not installed.
const moduleMissingMarker = "##WINCERT-NO-WEBADMIN##"

// discoverScript prints one compact JSON object per binding of every site.
const discoverScript = `$ErrorActionPreference = 'Stop'
if (-not (Get-Module -ListAvailable -Name WebAdministration)) {
    '` + moduleMissingMarker + `'
    return
}
Import-Module WebAdministration
foreach ($site in Get-Website) {
    foreach ($bind in $site.bindings.Collection) {
        [pscustomobject]@{
            Site        = $site.name
            Protocol    = $bind.protocol
            Information = $bind.bindingInformation
            Thumbprint  = $bind.certificateHash
            SslFlags    = [int]$bind.sslFlags
        } | ConvertTo-Json -Compress
    }
}`

// requireModule fails the script when WebAdministration cannot be loaded.
const requireModule = `$ErrorActionPreference = 'Stop'
if (-not (Get-Module -ListAvailable -Name WebAdministration)) {
    throw 'WebAdministration module is not available'
}
Import-Module WebAdministration
`

// matchBinding selects the bindings of $siteName whose protocol and
// bindingInformation equal the tuple exactly. Get-WebBinding treats '*' and
// an empty host header as wildcards, so it is only used to list the site.
const matchBinding = `$information = "${ipAddress}:${port}:${hostHeader}"
$matched = @(Get-WebBinding -Name $siteName -Protocol $protocol |
    Where-Object { $_.bindingInformation -eq $information -and $_.protocol -eq $protocol })
`

// removeScript deletes the binding matching the tuple. No match is not an
// error.
const removeScript = `param($siteName, $ipAddress, $port, $hostHeader, $protocol)
` + requireModule + matchBinding + `foreach ($b in $matched) {
    Remove-WebBinding -Name $siteName -Protocol $protocol -BindingInformation $b.bindingInformation
}`

const createScript = `param($siteName, $ipAddress, $port, $hostHeader, $protocol, $sslFlags)
` + requireModule + `New-WebBinding -Name $siteName -IPAddress $ipAddress -Port $port -HostHeader $hostHeader -Protocol $protocol -SslFlags $sslFlags | Out-Null`

// attachScript associates the certificate with the binding created by
// createScript. Exactly one binding must match.
const attachScript = `param($siteName, $ipAddress, $port, $hostHeader, $protocol, $thumbprint, $storePath)
` + requireModule + matchBinding + `if ($matched.Count -ne 1) {
    throw "expected one binding $information on site $siteName, found $($matched.Count)"
}
$matched[0].AddSslCertificate($thumbprint, $storePath)`
