package chassis

// Version 程序版本
const Version = "0.1.0"
