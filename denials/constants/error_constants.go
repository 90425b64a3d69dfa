package constants

// Gateway error messages. Downstream code classifies failures by substring, so these
// strings are part of the contract.
const NetworkErr = "Network Error: Unable to connect to backend API"
const HTTPStatusErr = "HTTP %d: %s"
const UploadTimeoutErr = "Upload timeout: no response from backend after %s"
const RCAMissingErr = "RCA result missing from response"

const RespBodyErr = "Failed to read response body %s"
const InvalidFileTypeErr = "Please select a ZIP file (.zip)"
const FileTooLargeErr = "File size must be less than 100MB"
const LargeFileAdvisory = "Large file detected. Upload may take several minutes."
const UploadInProgressErr = "an upload is already in progress"
const NoFileSelectedErr = "no file selected"
