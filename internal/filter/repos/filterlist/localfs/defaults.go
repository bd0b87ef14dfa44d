package localfs

// DefaultCustomRules seeds a newly created custom rules file.
const DefaultCustomRules = `! Custom filter rules
!
! One rule per line, Adblock Plus syntax. Lines starting with '!' are comments.
!   ||example.com^          block example.com and all subdomains
!   @@||example.com^        never block example.com
!   /ads/*$script           block scripts under any /ads/ path
!   ||tracker.net^$third-party
!
! This file is re-read on every refresh.
||doubleclick.net^
||googlesyndication.com^
||googleadservices.com^
||google-analytics.com^
||adservice.google.com^
||scorecardresearch.com^
||advertising.com^
`
