package certstore

import "github.com/remiblancher/wincert/internal/psoutput"

// Command names, used in logs, metrics and test fakes.
const (
	CommandList         = "certstore.list"
	CommandStage        = "certstore.stage"
	CommandInstall      = "certstore.install"
	CommandRemoveStaged = "certstore.remove-staged"
	CommandAdd          = "certstore.add"
)

// listScript enumerates a LocalMachine store read-only and prints one
// compact JSON object per certificate.
const listScript = `param($storePath)
$ErrorActionPreference = 'Stop'
$certStore = New-Object System.Security.Cryptography.X509Certificates.X509Store($storePath, 'LocalMachine')
$certStore.Open([System.Security.Cryptography.X509Certificates.OpenFlags]'ReadOnly, OpenExistingOnly')
try {
    foreach ($cert in $certStore.Certificates) {
        $csp = $null
        if ($cert.HasPrivateKey) {
            try { $csp = $cert.PrivateKey.CspKeyContainerInfo.ProviderName } catch { $csp = $null }
            if (-not $csp) {
                try {
                    $rsa = [System.Security.Cryptography.X509Certificates.RSACertificateExtensions]::GetRSAPrivateKey($cert)
                    if ($rsa -and $rsa.Key) { $csp = $rsa.Key.Provider.Provider }
                } catch { $csp = $null }
            }
        }
        $san = ($cert.Extensions | Where-Object { $_.Oid.Value -eq '2.5.29.17' } | ForEach-Object { $_.Format($false) }) -join ', '
        [pscustomobject]@{
            Thumbprint    = $cert.Thumbprint
            HasPrivateKey = $cert.HasPrivateKey
            RawData       = [System.Convert]::ToBase64String($cert.RawData)
            CSP           = $csp
            San           = $san
        } | ConvertTo-Json -Compress
    }
}
finally {
    $certStore.Close()
    $certStore.Dispose()
}`

// stageScript writes base64 content to a new temporary file and prints its
// path.
const stageScript = `param($certificateContents)
$ErrorActionPreference = 'Stop'
$filePath = [System.IO.Path]::GetTempFileName()
[System.IO.File]::WriteAllBytes($filePath, [System.Convert]::FromBase64String($certificateContents))
$filePath`

const removeStagedScript = `param($filePath)
Remove-Item -LiteralPath $filePath -Force -ErrorAction Stop`

// Install scripts, one per ImportVariant. Each captures certutil output as
// strings and ends with the exit marker.
const (
	installAddStoreScript = `param($pfxFilePath, $storePath)
$output = certutil -f -addstore $storePath $pfxFilePath 2>&1 | ForEach-Object { "$_" }` + psoutput.ExitMarkerScript

	installImportPFXScript = `param($pfxFilePath, $privateKeyPassword, $storePath)
$output = certutil -importpfx -p $privateKeyPassword $storePath $pfxFilePath 2>&1 | ForEach-Object { "$_" }` + psoutput.ExitMarkerScript

	installAddStoreCSPScript = `param($pfxFilePath, $cspName, $storePath)
$output = certutil -f -csp $cspName -addstore $storePath $pfxFilePath 2>&1 | ForEach-Object { "$_" }` + psoutput.ExitMarkerScript

	installImportPFXCSPScript = `param($pfxFilePath, $privateKeyPassword, $cspName, $storePath)
$output = certutil -importpfx -csp $cspName -p $privateKeyPassword $storePath $pfxFilePath 2>&1 | ForEach-Object { "$_" }` + psoutput.ExitMarkerScript
)

// addScript adds PFX bytes to a LocalMachine store through X509Store,
// persisting the key in the machine key set, and prints the thumbprint.
const addScript = `param($pfxContents, $privateKeyPassword, $storePath)
$ErrorActionPreference = 'Stop'
$bytes = [System.Convert]::FromBase64String($pfxContents)
$certStore = New-Object System.Security.Cryptography.X509Certificates.X509Store($storePath, 'LocalMachine')
$certStore.Open([System.Security.Cryptography.X509Certificates.OpenFlags]'ReadWrite')
try {
    $flags = [System.Security.Cryptography.X509Certificates.X509KeyStorageFlags]'MachineKeySet, PersistKeySet, Exportable'
    $cert = New-Object System.Security.Cryptography.X509Certificates.X509Certificate2 -ArgumentList $bytes, $privateKeyPassword, $flags
    $certStore.Add($cert)
    $cert.Thumbprint
}
finally {
    $certStore.Close()
}`
